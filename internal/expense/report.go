package expense

import "sort"

// CategoryTotal aggregates spend for one category.
type CategoryTotal struct {
	Category string  `json:"category"`
	Total    float64 `json:"total"`
	Count    int     `json:"count"`
}

// OwnerTotal aggregates spend for one submitting user.
type OwnerTotal struct {
	UserID   string  `json:"user_id"`
	UserName string  `json:"user_name"`
	Total    float64 `json:"total"`
	Count    int     `json:"count"`
}

// TotalsByCategory sums the current collection per category, largest total
// first. Pure read over in-memory state.
func (r *Repository) TotalsByCategory() []CategoryTotal {
	r.mu.RLock()
	byCategory := make(map[string]*CategoryTotal)
	for _, e := range r.records {
		t, ok := byCategory[e.Category]
		if !ok {
			t = &CategoryTotal{Category: e.Category}
			byCategory[e.Category] = t
		}
		t.Total += e.Total
		t.Count++
	}
	r.mu.RUnlock()

	out := make([]CategoryTotal, 0, len(byCategory))
	for _, t := range byCategory {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// TotalsByOwner sums the current collection per submitting user, largest
// total first. UserName is the denormalized snapshot carried on each
// record.
func (r *Repository) TotalsByOwner() []OwnerTotal {
	r.mu.RLock()
	byOwner := make(map[string]*OwnerTotal)
	for _, e := range r.records {
		t, ok := byOwner[e.UserID]
		if !ok {
			t = &OwnerTotal{UserID: e.UserID, UserName: e.UserName}
			byOwner[e.UserID] = t
		}
		t.Total += e.Total
		t.Count++
	}
	r.mu.RUnlock()

	out := make([]OwnerTotal, 0, len(byOwner))
	for _, t := range byOwner {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total > out[j].Total
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}
