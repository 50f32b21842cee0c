package report

import "time"

// Metadata contains report generation metadata.
type Metadata struct {
	Project     string    `json:"project"`
	GeneratedAt time.Time `json:"generated_at"`
	Version     string    `json:"version"`
	Functions   bool      `json:"functions_analyzed"`
	Files       int       `json:"files"`
	Total       int       `json:"declarations"`
}

// Row is one entity line of a bucket table.
type Row struct {
	Name          string `json:"name"`
	Category      string `json:"category"`
	Location      string `json:"location"`
	Internal      int    `json:"internal"`
	External      int    `json:"external"`
	ExternalFiles int    `json:"external_files"`
}

// BucketSection is the table of one bucket.
type BucketSection struct {
	Key   string `json:"key"`
	Title string `json:"title"`
	Badge string `json:"badge"`
	Rows  []Row  `json:"rows"`
}

// SummaryCard is one headline number.
type SummaryCard struct {
	Label string `json:"label"`
	Value int    `json:"value"`
	Badge string `json:"badge"`
}
