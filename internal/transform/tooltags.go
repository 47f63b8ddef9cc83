package transform

import (
	"fmt"

	"github.com/BRO3886/story-indexer/internal/types"
)

// CollectToolTags flattens tag -> tools -> toolTagAssocId into a list with
// each id once, in order of first appearance. It returns nil when no id was
// found so the field is left out of the record.
func CollectToolTags(tags []types.ToolTag) ([]string, error) {
	if len(tags) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for i, tag := range tags {
		for j, tool := range tag.Tools {
			id, err := types.Required(fmt.Sprintf("toolTags[%d].tools[%d].toolTagAssocId", i, j), tool.ToolTagAssocID)
			if err != nil {
				return nil, err
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return ids, nil
}
