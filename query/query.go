// Package query provides the read-side aggregations over wells: per-plate
// tallies for the soak, cryo and redesolve pipelines, reagent usage, and the
// filtered well lists the fishing and reporting screens poll.
//
// Aggregation runs in process over a filtered Find so that every backend
// produces identical results.
package query

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/jacentio/ffcs/schema"
	"github.com/jacentio/ffcs/store"
)

// Service runs read-only queries on a Store.
type Service struct {
	store  *store.Store
	logger *slog.Logger
}

// New creates a query Service.
func New(s *store.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: s, logger: logger}
}

// tallyKind selects the flag a PlateTally splits wells by.
type tallyKind int

const (
	tallySoak tallyKind = iota
	tallyCryo
	tallyRedesolve
)

type tallyFields struct {
	status  string
	flag    string
	with    string
	without string
}

var tallies = map[tallyKind]tallyFields{
	tallySoak:      {"soakStatus", "libraryAssigned", "wellsWithLibrary", "wellsWithoutLibrary"},
	tallyCryo:      {"cryoStatus", "cryoProtection", "wellsWithCryoProtection", "wellsWithoutCryoProtection"},
	tallyRedesolve: {"redesolveStatus", "redesolveApplied", "wellsWithNewSolvent", "wellsWithoutNewSolvent"},
}

// PlateTally counts the not yet exported wells of one plate, split by
// whether the pipeline's flag is set.
type PlateTally struct {
	PlateID    string
	TotalWells int
	With       int
	Without    int
	kind       tallyKind
}

// MarshalJSON names the split counts after the pipeline.
func (t PlateTally) MarshalJSON() ([]byte, error) {
	fields := tallies[t.kind]
	return json.Marshal(map[string]any{
		"_id":          t.PlateID,
		"totalWells":   t.TotalWells,
		fields.with:    t.With,
		fields.without: t.Without,
	})
}

// PlatesToSoak tallies wells still pending or unassigned for soaking, by
// plate, split by library assignment.
func (s *Service) PlatesToSoak(ctx context.Context, user, campaign string) ([]PlateTally, error) {
	return s.plateTallies(ctx, tallySoak, user, campaign)
}

// PlatesToCryoSoak tallies wells not yet cryo exported, split by cryo
// protection.
func (s *Service) PlatesToCryoSoak(ctx context.Context, user, campaign string) ([]PlateTally, error) {
	return s.plateTallies(ctx, tallyCryo, user, campaign)
}

// PlatesForRedesolve tallies wells not yet redesolve exported, split by
// whether a new solvent was applied.
func (s *Service) PlatesForRedesolve(ctx context.Context, user, campaign string) ([]PlateTally, error) {
	return s.plateTallies(ctx, tallyRedesolve, user, campaign)
}

func (s *Service) plateTallies(ctx context.Context, kind tallyKind, user, campaign string) ([]PlateTally, error) {
	fields := tallies[kind]
	docs, err := s.find(ctx, owned(user, campaign, store.In(fields.status, schema.StatusPending, nil)))
	if err != nil {
		return nil, err
	}
	byPlate := make(map[string]*PlateTally)
	for _, d := range docs {
		plateID, _ := d["plateId"].(string)
		t, ok := byPlate[plateID]
		if !ok {
			t = &PlateTally{PlateID: plateID, kind: kind}
			byPlate[plateID] = t
		}
		t.TotalWells++
		if flag, _ := d[fields.flag].(bool); flag {
			t.With++
		} else {
			t.Without++
		}
	}
	out := make([]PlateTally, 0, len(byPlate))
	for _, t := range byPlate {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return plateIDLess(out[j].PlateID, out[i].PlateID) })
	return out, nil
}

// plateIDLess orders numeric plate ids numerically and anything else
// lexically.
func plateIDLess(a, b string) bool {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}

// UsageKey groups reagent usage by source well and library or cryo name.
type UsageKey struct {
	SourceWell  *string `json:"sourceWell"`
	LibraryName *string `json:"libraryName"`
}

// Usage is the total transfer volume drawn from one source well.
type Usage struct {
	ID    UsageKey `json:"_id"`
	Total float64  `json:"total"`
}

// CryoUsage sums the cryo transfer volume per (cryo source well, cryo
// name) over cryo-protected wells not yet exported.
func (s *Service) CryoUsage(ctx context.Context, user, campaign string) ([]Usage, error) {
	docs, err := s.find(ctx, owned(user, campaign,
		store.Eq("cryoProtection", true),
		store.Ne("cryoStatus", schema.StatusExported),
	))
	if err != nil {
		return nil, err
	}
	return sumUsage(docs, "cryoSourceWell", "cryoName", "cryoTransferVolume"), nil
}

// SolventUsage sums the ligand transfer volume per (source well, library
// name) over solvent-test wells that are neither exported nor done.
func (s *Service) SolventUsage(ctx context.Context, user, campaign string) ([]Usage, error) {
	docs, err := s.find(ctx, owned(user, campaign,
		store.Eq("solventTest", true),
		store.Ne("soakStatus", schema.StatusExported),
		store.Ne("soakStatus", schema.StatusDone),
	))
	if err != nil {
		return nil, err
	}
	return sumUsage(docs, "sourceWell", "libraryName", "ligandTransferVolume"), nil
}

// sumUsage groups docs by two string fields and sums a numeric field.
// Non-numeric volumes count as zero. Groups keep first-seen order.
func sumUsage(docs []store.Doc, wellField, nameField, volumeField string) []Usage {
	index := make(map[string]int)
	var out []Usage
	for _, d := range docs {
		key := UsageKey{SourceWell: optString(d, wellField), LibraryName: optString(d, nameField)}
		k := fmt.Sprintf("%v\x00%v", deref(key.SourceWell), deref(key.LibraryName))
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, Usage{ID: key})
		}
		switch v := d[volumeField].(type) {
		case float64:
			out[i].Total += v
		case int64:
			out[i].Total += float64(v)
		}
	}
	if out == nil {
		out = []Usage{}
	}
	return out
}

// UnsoakedWellCount counts wells with no soak status.
func (s *Service) UnsoakedWellCount(ctx context.Context, user, campaign string) (int64, error) {
	return s.count(ctx, owned(user, campaign, store.IsNull("soakStatus")))
}

// LibraryUsageCount counts wells assigned a fragment from libraryID.
func (s *Service) LibraryUsageCount(ctx context.Context, user, campaign, libraryID string) (int64, error) {
	return s.count(ctx, owned(user, campaign, store.Eq("libraryId", libraryID)))
}

// SoakedNotFished returns wells whose soak transfer succeeded and that have
// not been fished yet.
func (s *Service) SoakedNotFished(ctx context.Context, user, campaign string) ([]schema.Well, error) {
	return s.wells(ctx, owned(user, campaign,
		store.Ne("soakTransferTime", nil),
		store.Eq("fished", false),
		store.Eq("soakTransferStatus", "OK"),
	))
}

// AllFishedWells returns every fished well, named or not.
func (s *Service) AllFishedWells(ctx context.Context, user, campaign string) ([]schema.Well, error) {
	return s.wells(ctx, owned(user, campaign, store.Eq("fished", true)))
}

// WellsPendingXlsExport returns named crystals not yet written to the
// data-collection sheet.
func (s *Service) WellsPendingXlsExport(ctx context.Context, user, campaign string) ([]schema.Well, error) {
	return s.wells(ctx, owned(user, campaign,
		store.Eq("fished", true),
		store.Eq("exportedToXls", false),
		store.Ne("xtalName", nil),
	))
}

// NotMatchedWells returns wells without a compound that are free for a
// fragment: either not cryo protected, or already cryo exported.
func (s *Service) NotMatchedWells(ctx context.Context, user, campaign string) ([]schema.Well, error) {
	return s.wells(ctx, owned(user, campaign,
		store.IsNull("compoundCode"),
		store.Or(
			store.Eq("cryoProtection", false),
			store.And(
				store.Eq("cryoProtection", true),
				store.Eq("cryoStatus", schema.StatusExported),
			),
		),
	))
}

func owned(user, campaign string, more ...store.Filter) store.Filter {
	return store.And(append([]store.Filter{
		store.Eq("userAccount", user),
		store.Eq("campaignId", campaign),
	}, more...)...)
}

func (s *Service) find(ctx context.Context, f store.Filter) ([]store.Doc, error) {
	coll, err := s.store.Collection(store.Wells)
	if err != nil {
		return nil, err
	}
	return coll.Find(ctx, f)
}

func (s *Service) wells(ctx context.Context, f store.Filter) ([]schema.Well, error) {
	docs, err := s.find(ctx, f)
	if err != nil {
		return nil, err
	}
	return schema.WellsFromDocs(docs), nil
}

func (s *Service) count(ctx context.Context, f store.Filter) (int64, error) {
	coll, err := s.store.Collection(store.Wells)
	if err != nil {
		return 0, err
	}
	return coll.Count(ctx, f)
}

func optString(d store.Doc, k string) *string {
	v, ok := d[k].(string)
	if !ok {
		return nil
	}
	return &v
}

func deref(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
