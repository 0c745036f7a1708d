package extract

// Response is the JSON body of /api/clean-pdf.
type Response struct {
	Text     string    `json:"text"`
	Metadata *Metadata `json:"metadata,omitempty"`
	Stats    *Stats    `json:"stats,omitempty"`
	Error    string    `json:"error,omitempty"`
}

type Metadata struct {
	Title  string `json:"title,omitempty"`
	Author string `json:"author,omitempty"`
	Pages  int    `json:"pages"`
}

type Stats struct {
	Characters int `json:"characters"`
	Words      int `json:"words"`
	Lines      int `json:"lines"`
}

// Pages returns the reported page count, or 0 when absent.
func (r Response) Pages() int {
	if r.Metadata == nil {
		return 0
	}
	return r.Metadata.Pages
}
