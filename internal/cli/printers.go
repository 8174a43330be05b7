package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	"github.com/chapterdesk/chapterdesk-server/internal/client"
	"github.com/chapterdesk/chapterdesk-server/internal/domain"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printChapters(w io.Writer, chapters []domain.Chapter) error {
	if len(chapters) == 0 {
		_, err := fmt.Fprintln(w, color.New(color.Faint).Sprint("No chapters."))
		return err
	}

	bold := color.New(color.Bold)
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.MaxColWidth = 80
	tbl.AddRow(bold.Sprint("ID"), bold.Sprint("TIME"), bold.Sprint("TITLE"))
	for _, ch := range chapters {
		tbl.AddRow(strconv.FormatInt(ch.ID, 10), FormatTimestamp(ch.Timestamp), ch.Title)
	}
	tbl.RightAlign(0)
	tbl.RightAlign(1)

	_, err := fmt.Fprintln(w, tbl)
	return err
}

func printChapter(w io.Writer, verb string, ch domain.Chapter) error {
	_, err := fmt.Fprintf(w, "%s chapter %d  %s  %s\n",
		color.GreenString(verb), ch.ID, FormatTimestamp(ch.Timestamp), ch.Title)
	return err
}

func printVideo(w io.Writer, v *client.VideoInfo) error {
	tbl := uitable.New()
	tbl.Separator = "  "
	tbl.AddRow("Title:", v.Title)
	tbl.AddRow("Plant unit:", v.PlantUnit)
	tbl.AddRow("Asset:", v.Asset)
	tbl.AddRow("Category:", v.Category)
	tbl.AddRow("File:", fmt.Sprintf("%s (%s, %d bytes)", v.Filename, v.ContentType, v.Size))
	tbl.AddRow("Uploaded:", v.UploadedAt.Local().Format("2006-01-02 15:04"))
	tbl.AddRow("URL:", color.CyanString(v.VideoURL))
	tbl.RightAlign(0)

	_, err := fmt.Fprintln(w, tbl)
	return err
}
