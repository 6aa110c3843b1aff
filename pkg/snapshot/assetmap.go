package snapshot

import (
	"sort"
)

const blocksDOMContentLoaded = "DOMContentLoaded"

func buildAssetMap(s *Snapshot) *AssetMap {
	m := &AssetMap{
		ByType:       make(map[AssetType][]string),
		ByDomain:     make(map[string][]string),
		Dependencies: make([]Dependency, 0),
		CriticalPath: make([]CriticalAsset, 0),
		Security: MapSecurity{
			MixedContent:     make([]string, 0),
			MissingIntegrity: make([]string, 0),
			CrossOrigin:      make([]string, 0),
		},
	}

	var critical []*Asset
	for _, a := range s.Ordered() {
		m.ByType[a.Type] = append(m.ByType[a.Type], a.ID)
		if a.Domain != "" {
			m.ByDomain[a.Domain] = append(m.ByDomain[a.Domain], a.ID)
		}
		if a.Inline {
			continue
		}

		if a.Blocking() {
			m.Dependencies = append(m.Dependencies, Dependency{
				AssetID:   a.ID,
				URL:       a.URL,
				DependsOn: make([]string, 0),
				Blocks:    blocksDOMContentLoaded,
			})
		}
		if a.Type == TypeStylesheet || a.Blocking() {
			critical = append(critical, a)
		}

		if s.pageSecure && !a.Security.Secure {
			m.Security.MixedContent = append(m.Security.MixedContent, a.URL)
		}
		if a.Security.CrossOrigin {
			m.Security.CrossOrigin = append(m.Security.CrossOrigin, a.URL)
			if (a.Type == TypeScript || a.Type == TypeStylesheet) && !a.Security.HasIntegrity {
				m.Security.MissingIntegrity = append(m.Security.MissingIntegrity, a.URL)
			}
		}
	}

	// Ordered() is by sequence, so a stable sort keeps insertion order on ties.
	sort.SliceStable(critical, func(i, j int) bool { return critical[i].LoadTime < critical[j].LoadTime })
	for _, a := range critical {
		m.CriticalPath = append(m.CriticalPath, CriticalAsset{
			ID:       a.ID,
			URL:      a.URL,
			Type:     a.Type,
			LoadTime: a.LoadTime,
		})
	}

	sort.Strings(m.Security.MixedContent)
	sort.Strings(m.Security.MissingIntegrity)
	sort.Strings(m.Security.CrossOrigin)
	return m
}

func computeMetrics(s *Snapshot) {
	p := &s.Performance
	var secure, maxLoad float64
	p.TotalSize, p.RequestCount, p.CrossOriginCount, p.IntegrityCount = 0, 0, 0, 0

	for _, a := range s.Assets {
		if a.Inline {
			continue
		}
		p.RequestCount++
		p.TotalSize += a.Size
		if a.Security.Secure {
			secure++
		}
		if a.Security.CrossOrigin {
			p.CrossOriginCount++
		}
		if a.Security.HasIntegrity {
			p.IntegrityCount++
		}
		if a.LoadTime > maxLoad {
			maxLoad = a.LoadTime
		}
	}

	if p.RequestCount > 0 {
		p.HTTPSPercent = secure / float64(p.RequestCount) * 100
		p.AverageSize = float64(p.TotalSize) / float64(p.RequestCount)
	}
	if p.LoadTime == 0 {
		p.LoadTime = maxLoad
	}
}

func (m *AssetMap) clone() *AssetMap {
	c := &AssetMap{
		ByType:       make(map[AssetType][]string, len(m.ByType)),
		ByDomain:     make(map[string][]string, len(m.ByDomain)),
		Dependencies: make([]Dependency, len(m.Dependencies)),
		CriticalPath: append([]CriticalAsset(nil), m.CriticalPath...),
		Security: MapSecurity{
			MixedContent:     append([]string(nil), m.Security.MixedContent...),
			MissingIntegrity: append([]string(nil), m.Security.MissingIntegrity...),
			CrossOrigin:      append([]string(nil), m.Security.CrossOrigin...),
		},
	}
	for k, v := range m.ByType {
		c.ByType[k] = append([]string(nil), v...)
	}
	for k, v := range m.ByDomain {
		c.ByDomain[k] = append([]string(nil), v...)
	}
	for i, d := range m.Dependencies {
		d.DependsOn = append([]string(nil), d.DependsOn...)
		c.Dependencies[i] = d
	}
	return c
}
