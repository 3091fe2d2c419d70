package entity

// RawPage is one page of a scanned batch as delivered by the text extraction layer.
type RawPage struct {
	Index     int    `json:"index"` // 1-based position within the batch
	Text      string `json:"text"`
	ImagePath string `json:"image_path,omitempty"`
}
