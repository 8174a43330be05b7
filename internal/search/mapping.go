package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
)

// Field names used in indexed documents.
const (
	fieldTitle     = "title"
	fieldTimestamp = "timestamp"
)

// buildIndexMapping creates the Bleve index mapping for chapter documents.
//
// Titles get English stemming so "instruction" finds "Safety Instructions".
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	docMapping := bleve.NewDocumentMapping()

	titleFieldMapping := bleve.NewTextFieldMapping()
	titleFieldMapping.Analyzer = en.AnalyzerName
	titleFieldMapping.Store = true
	titleFieldMapping.IncludeTermVectors = true
	docMapping.AddFieldMappingsAt(fieldTitle, titleFieldMapping)

	timestampFieldMapping := bleve.NewNumericFieldMapping()
	timestampFieldMapping.Store = true
	docMapping.AddFieldMappingsAt(fieldTimestamp, timestampFieldMapping)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}
