package types

// IndexRecord is the flat search document built from one StoryDocument.
// Pointer and slice fields are conditional and are omitted from the
// serialized form when absent.
type IndexRecord struct {
	ID                string   `json:"id"`
	PageTitle         string   `json:"page_title_t"`
	PageDescription   string   `json:"page_description_t"`
	StoryType         string   `json:"story_type_s"`
	ProductID         string   `json:"product_id_s"`
	Type              string   `json:"type_s"`
	PageType          string   `json:"pageType_s"`
	SubType           string   `json:"subType_s"`
	FirstSectionTitle string   `json:"first_section_title_t"`
	FirstSectionDesc  string   `json:"first_section_desc_t"`
	Section           string   `json:"section_t"`
	ToolTagAssocIDs   []string `json:"tool_tag_assoc_ss,omitempty"`
	BannerTitle       *string  `json:"banner_title_t,omitempty"`
	BannerDescription *string  `json:"banner_description_t,omitempty"`
	Steps             *string  `json:"steps_t,omitempty"`
	Questions         *string  `json:"questions_t,omitempty"`
}

// Fields returns the record as a flat field name to value mapping, holding
// only the keys that are present.
func (r IndexRecord) Fields() map[string]any {
	fields := map[string]any{
		"id":                    r.ID,
		"page_title_t":          r.PageTitle,
		"page_description_t":    r.PageDescription,
		"story_type_s":          r.StoryType,
		"product_id_s":          r.ProductID,
		"type_s":                r.Type,
		"pageType_s":            r.PageType,
		"subType_s":             r.SubType,
		"first_section_title_t": r.FirstSectionTitle,
		"first_section_desc_t":  r.FirstSectionDesc,
		"section_t":             r.Section,
	}
	if r.ToolTagAssocIDs != nil {
		fields["tool_tag_assoc_ss"] = r.ToolTagAssocIDs
	}
	if r.BannerTitle != nil {
		fields["banner_title_t"] = *r.BannerTitle
	}
	if r.BannerDescription != nil {
		fields["banner_description_t"] = *r.BannerDescription
	}
	if r.Steps != nil {
		fields["steps_t"] = *r.Steps
	}
	if r.Questions != nil {
		fields["questions_t"] = *r.Questions
	}
	return fields
}
