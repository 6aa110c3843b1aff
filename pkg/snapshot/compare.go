package snapshot

import "sort"

// Change describes an asset present in both snapshots whose size or load
// time differs.
type Change struct {
	URL            string    `json:"url"`
	Type           AssetType `json:"type"`
	SizeBefore     int64     `json:"size_before"`
	SizeAfter      int64     `json:"size_after"`
	LoadTimeBefore float64   `json:"load_time_before_ms"`
	LoadTimeAfter  float64   `json:"load_time_after_ms"`
}

// Delta holds after-minus-before aggregate differences.
type Delta struct {
	LoadTime     float64 `json:"load_time_ms"`
	TotalSize    int64   `json:"total_size"`
	RequestCount int     `json:"request_count"`
}

// Comparison is the result of diffing two snapshots.
type Comparison struct {
	Before   string   `json:"before"`
	After    string   `json:"after"`
	Added    []Asset  `json:"added"`
	Removed  []Asset  `json:"removed"`
	Modified []Change `json:"modified"`
	Delta    Delta    `json:"delta"`
}

// Diff compares two snapshot values. Assets are matched by URL; inline
// assets have none and are not compared.
func Diff(before, after *Snapshot) *Comparison {
	c := &Comparison{
		Before:   before.ID,
		After:    after.ID,
		Added:    make([]Asset, 0),
		Removed:  make([]Asset, 0),
		Modified: make([]Change, 0),
		Delta: Delta{
			LoadTime:     after.Performance.LoadTime - before.Performance.LoadTime,
			TotalSize:    after.Performance.TotalSize - before.Performance.TotalSize,
			RequestCount: after.Performance.RequestCount - before.Performance.RequestCount,
		},
	}

	a, b := byURL(before), byURL(after)
	for u, asset := range b {
		old, ok := a[u]
		if !ok {
			c.Added = append(c.Added, *asset)
			continue
		}
		if old.Size != asset.Size || old.LoadTime != asset.LoadTime {
			c.Modified = append(c.Modified, Change{
				URL:            u,
				Type:           asset.Type,
				SizeBefore:     old.Size,
				SizeAfter:      asset.Size,
				LoadTimeBefore: old.LoadTime,
				LoadTimeAfter:  asset.LoadTime,
			})
		}
	}
	for u, asset := range a {
		if _, ok := b[u]; !ok {
			c.Removed = append(c.Removed, *asset)
		}
	}

	sort.Slice(c.Added, func(i, j int) bool { return c.Added[i].URL < c.Added[j].URL })
	sort.Slice(c.Removed, func(i, j int) bool { return c.Removed[i].URL < c.Removed[j].URL })
	sort.Slice(c.Modified, func(i, j int) bool { return c.Modified[i].URL < c.Modified[j].URL })
	return c
}

func byURL(s *Snapshot) map[string]*Asset {
	out := make(map[string]*Asset, len(s.Assets))
	for _, a := range s.Assets {
		if a.URL != "" {
			out[a.URL] = a
		}
	}
	return out
}
