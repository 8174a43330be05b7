package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/chapterdesk/chapterdesk-server/internal/client"
	"github.com/chapterdesk/chapterdesk-server/internal/domain"
	"github.com/chapterdesk/chapterdesk-server/internal/errors"
)

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.Validationf("invalid chapter id %q", arg)
	}
	return id, nil
}

func addList(topLevel *cobra.Command, opts *Options) {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List the chapters of the active video",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := newSession(cmd, opts)
			chapters, err := s.client.List(cmd.Context())
			if err != nil {
				return err
			}
			if opts.JSON {
				return printJSON(cmd.OutOrStdout(), chapters)
			}
			return printChapters(cmd.OutOrStdout(), chapters)
		},
	}
	topLevel.AddCommand(cmd)
}

func addSearch(topLevel *cobra.Command, opts *Options) {
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Find chapters by title",
		Example: `
chapterctl search lockout
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := newSession(cmd, opts)
			chapters, err := s.client.Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if opts.JSON {
				return printJSON(cmd.OutOrStdout(), chapters)
			}
			return printChapters(cmd.OutOrStdout(), chapters)
		},
	}
	topLevel.AddCommand(cmd)
}

func addAdd(topLevel *cobra.Command, opts *Options) {
	var title, at string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Append a chapter",
		Long:  "Append a chapter. Without flags the server's defaults are used (\"New Chapter\" at 0:00).",
		Example: `
chapterctl add --title "Lockout" --at 1:15
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var req client.CreateRequest
			if cmd.Flags().Changed("title") {
				req.Title = &title
			}
			if cmd.Flags().Changed("at") {
				ts, err := ParseTimestamp(at)
				if err != nil {
					return errors.Validation(err.Error())
				}
				req.Timestamp = &ts
			}

			s := newSession(cmd, opts)
			created, err := s.client.Create(cmd.Context(), req)
			if err != nil {
				return err
			}
			if opts.JSON {
				return printJSON(cmd.OutOrStdout(), created)
			}
			return printChapter(cmd.OutOrStdout(), "Added", *created)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "Chapter title.")
	cmd.Flags().StringVar(&at, "at", "", "Position in the video, e.g. 75, 1:15 or 1:01:15.")
	topLevel.AddCommand(cmd)
}

func addEdit(topLevel *cobra.Command, opts *Options) {
	var title, at string

	cmd := &cobra.Command{
		Use:     "edit ID",
		Aliases: []string{"rename"},
		Short:   "Change the title or position of a chapter",
		Example: `
chapterctl edit 3 --title "Safety briefing"
chapterctl edit 3 --at 2:30
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			titleSet, atSet := cmd.Flags().Changed("title"), cmd.Flags().Changed("at")
			if !titleSet && !atSet {
				return errors.Validation("nothing to change: pass --title or --at")
			}

			ctx := cmd.Context()
			s := newSession(cmd, opts)
			view, err := s.view(ctx, nil)
			if err != nil {
				return err
			}

			if err := view.StartEdit(id); err != nil {
				return err
			}
			_, draft, err := view.State(id)
			if err != nil {
				return err
			}
			if titleSet {
				draft.Title = title
			}
			if atSet {
				if draft.Timestamp, err = ParseTimestamp(at); err != nil {
					_ = view.Cancel(id)
					return errors.Validation(err.Error())
				}
			}
			if err := view.SetDraft(id, draft); err != nil {
				return err
			}

			updated, err := view.Save(ctx, id)
			if err != nil {
				return err
			}
			if opts.JSON {
				return printJSON(cmd.OutOrStdout(), updated)
			}
			return printChapter(cmd.OutOrStdout(), "Updated", *updated)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "New title.")
	cmd.Flags().StringVar(&at, "at", "", "New position, e.g. 75, 1:15 or 1:01:15.")
	topLevel.AddCommand(cmd)
}

func addDelete(topLevel *cobra.Command, opts *Options) {
	cmd := &cobra.Command{
		Use:     "delete ID...",
		Aliases: []string{"rm"},
		Short:   "Remove chapters",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]int64, 0, len(args))
			for _, arg := range args {
				id, err := parseID(arg)
				if err != nil {
					return err
				}
				ids = append(ids, id)
			}

			ctx := cmd.Context()
			s := newSession(cmd, opts)
			view, err := s.view(ctx, nil)
			if err != nil {
				return err
			}
			for _, id := range ids {
				if err := view.Delete(ctx, id); err != nil {
					return fmt.Errorf("delete chapter %d: %w", id, err)
				}
			}

			if opts.JSON {
				return printJSON(cmd.OutOrStdout(), view.Chapters())
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s %d chapter(s)\n", color.GreenString("Deleted"), len(ids))
			return printChapters(cmd.OutOrStdout(), view.Chapters())
		},
	}
	topLevel.AddCommand(cmd)
}

func addPlay(topLevel *cobra.Command, opts *Options) {
	cmd := &cobra.Command{
		Use:     "play ID",
		Aliases: []string{"select", "seek"},
		Short:   "Print a link that plays the video from a chapter",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			s := newSession(cmd, opts)
			player := &terminalPlayer{out: cmd.OutOrStdout()}
			if video, err := s.client.Video(ctx); err == nil {
				player.videoURL = video.VideoURL
			} else if !errors.Is(err, errors.ErrNotFound) {
				return err
			}

			view, err := s.view(ctx, player)
			if err != nil {
				return err
			}
			return view.Select(id)
		},
	}
	topLevel.AddCommand(cmd)
}

func addUpload(topLevel *cobra.Command, opts *Options) {
	var meta domain.UploadMetadata

	cmd := &cobra.Command{
		Use:   "upload FILE",
		Short: "Upload a video and generate its chapters",
		Long:  "Upload a video. It replaces the active video and its chapters.",
		Example: `
chapterctl upload changeover.mp4 --title "Pump changeover" --plant-unit "Unit 1" --asset "P-101" --category "Maintenance"
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			ctx := cmd.Context()
			s := newSession(cmd, opts)
			view := client.NewView(s.client, nil, s.logger)
			resp, err := view.Upload(ctx, client.UploadRequest{
				Metadata: meta,
				Filename: filepath.Base(args[0]),
				File:     f,
			})
			if err != nil {
				return err
			}

			if opts.JSON {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "%s %s\n", color.GreenString("Uploaded"), color.CyanString(resp.VideoURL))
			if err := printChapters(out, resp.Chapters); err != nil {
				return err
			}
			if resp.NeedsReview {
				_, _ = fmt.Fprintln(out, color.YellowString("Some chapter titles are placeholders; review them with chapterctl edit."))
			}
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&meta.Title, "title", "", "Video title.")
	flags.StringVar(&meta.PlantUnit, "plant-unit", "", "Plant unit.")
	flags.StringVar(&meta.Asset, "asset", "", "Asset.")
	flags.StringVar(&meta.Category, "category", "", "Category.")
	topLevel.AddCommand(cmd)
}

func addVideo(topLevel *cobra.Command, opts *Options) {
	cmd := &cobra.Command{
		Use:   "video",
		Short: "Show the active video",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := newSession(cmd, opts)
			video, err := s.client.Video(cmd.Context())
			if err != nil {
				return err
			}
			if opts.JSON {
				return printJSON(cmd.OutOrStdout(), video)
			}
			return printVideo(cmd.OutOrStdout(), video)
		},
	}
	topLevel.AddCommand(cmd)
}
