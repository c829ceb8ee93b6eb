package model

// SourceAdminAnswer marks passages created from an administrator answer.
const SourceAdminAnswer = "admin_answer"

// Passage is a titled unit of grounding text.
type Passage struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Content      string   `json:"content"`
	Tags         []string `json:"tags"`
	Source       string   `json:"source"`
	Competencies []string `json:"competencies"`
}

// IsAdminAnswer reports whether the passage was authored by an administrator.
func (p Passage) IsAdminAnswer() bool {
	return p.Source == SourceAdminAnswer
}
