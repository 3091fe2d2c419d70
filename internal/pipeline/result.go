package pipeline

import (
	"github.com/joseph-ayodele/docmatch/constants"
	"github.com/joseph-ayodele/docmatch/internal/cluster"
	"github.com/joseph-ayodele/docmatch/internal/entity"
	"github.com/joseph-ayodele/docmatch/internal/match"
)

func pageResult(index int, res match.Result) entity.PageResult {
	if !res.Resolved() {
		return entity.PageResult{Page: index, Status: constants.StatusUnresolved, IdentityKey: constants.NoneFound}
	}
	rec := res.Record
	out := entity.PageResult{
		Page:              index,
		Status:            constants.StatusMatched,
		IdentityKey:       rec.IdentityKey,
		MatchedIdentifier: rec.Identifier,
		Key:               rec.Key,
		Year:              rec.Year,
		Score:             res.Score,
		Rule:              res.Rule,
		Details:           make([]entity.FieldDetail, 0, len(res.Details)),
	}
	for _, d := range res.Details {
		out.Details = append(out.Details, entity.FieldDetail{
			Field:     d.Field,
			Kind:      string(d.Kind),
			Candidate: d.Candidate,
			Ratio:     d.Ratio,
			Points:    d.Points,
			Note:      d.String(),
		})
	}
	return out
}

func failedPage(index int, err error) pageState {
	return pageState{result: entity.PageResult{
		Page:        index,
		Status:      constants.StatusFailed,
		IdentityKey: constants.NoneFound,
		Error:       err.Error(),
	}}
}

// documents numbers groups from 1 in page order. A document takes the identity of its
// first resolved page.
func (d *Driver) documents(groups []cluster.Group, pages []entity.PageResult) []entity.Document {
	byIndex := make(map[int]int, len(pages))
	for i, p := range pages {
		byIndex[p.Page] = i
	}
	docs := make([]entity.Document, 0, len(groups))
	for gi, g := range groups {
		doc := entity.Document{Cluster: gi + 1, Pages: g.Pages, IdentityKey: constants.NoneFound}
		for _, idx := range g.Pages {
			p := &pages[byIndex[idx]]
			p.Cluster = doc.Cluster
			if doc.IdentityKey == constants.NoneFound && p.Matched() {
				doc.IdentityKey = p.IdentityKey
			}
		}
		docs = append(docs, doc)
	}
	return docs
}

func documentStarts(identities []string, states []pageState) []entity.DocumentStart {
	positions := cluster.Segments(identities)
	starts := make([]entity.DocumentStart, 0, len(positions))
	for _, pos := range positions {
		st := states[pos]
		ds := entity.DocumentStart{Page: st.result.Page, IdentityKey: st.result.IdentityKey}
		if st.record != nil {
			ds.Key = st.record.Key
			ds.Year = st.record.Year
		}
		starts = append(starts, ds)
	}
	return starts
}

func summarize(pages []entity.PageResult) entity.Summary {
	s := entity.Summary{Pages: len(pages)}
	for _, p := range pages {
		switch p.Status {
		case constants.StatusMatched:
			s.Matched++
		case constants.StatusFailed:
			s.Failed++
		default:
			s.Unresolved++
		}
	}
	if s.Pages > 0 {
		s.MatchRate = float64(s.Matched) / float64(s.Pages)
	}
	return s
}
