package history

import (
	"time"

	"github.com/localnerve/spacelink/internal/models"
	"github.com/localnerve/spacelink/internal/sync"
)

// Candidates lists the upstream content items a downstream domain could
// pull, by id (or tag) to display name. The maps are inputs only; the
// builder never mutates them.
type Candidates struct {
	Apps     map[string]string
	Fixtures map[string]string
	Reports  map[string]string
	Keywords map[string]string
}

// PullableItem is one row of the "available to pull" listing. LastPull
// is nil for items that have never been pulled.
type PullableItem struct {
	Type     sync.ModelType
	Detail   sync.Detail
	Name     string
	LastPull *time.Time
}

// PullView partitions the pullable items of a link: models with at
// least one visible history row, and candidates that have never been
// pulled. An item never appears in both halves.
type PullView struct {
	AlreadyPulled []PullableItem
	NeverPulled   []PullableItem
}

// domainLevelTypes are listed once per link whether or not any history
// exists for them yet.
var domainLevelTypes = []sync.ModelType{
	sync.ModelFlags,
	sync.ModelPreviews,
	sync.ModelCustomData,
	sync.ModelUserRoles,
	sync.ModelCaseSearch,
	sync.ModelDialerSettings,
	sync.ModelOTPSettings,
	sync.ModelHMACSettings,
	sync.ModelTableauConfig,
	sync.ModelDataDictionary,
	sync.ModelAutoUpdateRules,
}

// BuildPullView builds the pull listing from the reduced history rows
// (see MostRecent) and the upstream candidate sets. Superuser-only
// model types are dropped for regular users. The historized and
// never-pulled halves are derived from an up-front partition of the
// candidate keys, so building the view twice from the same inputs gives
// the same answer.
func BuildPullView(recent []models.DomainLinkHistory, candidates Candidates, superuser bool) (*PullView, error) {
	view := &PullView{}

	historized := detailKeys(recent)

	for _, row := range recent {
		modelType := sync.ModelType(row.ModelType)
		if modelType.SuperuserOnly() && !superuser {
			continue
		}
		detail, err := sync.DecodeDetail(modelType, row.ModelDetail)
		if err != nil {
			return nil, err
		}
		date := row.Date
		view.AlreadyPulled = append(view.AlreadyPulled, PullableItem{
			Type:     modelType,
			Detail:   detail,
			Name:     itemName(modelType, detail, candidates),
			LastPull: &date,
		})
	}

	for _, modelType := range domainLevelTypes {
		if modelType.SuperuserOnly() && !superuser {
			continue
		}
		if historized[detailKey(modelType, nil)] {
			continue
		}
		view.NeverPulled = append(view.NeverPulled, PullableItem{
			Type: modelType,
			Name: modelType.DisplayName(),
		})
	}

	appendNever := func(modelType sync.ModelType, items map[string]string, detail func(id string) sync.Detail) {
		for id, name := range items {
			d := detail(id)
			if historized[detailKeyFor(modelType, d)] {
				continue
			}
			view.NeverPulled = append(view.NeverPulled, PullableItem{
				Type:   modelType,
				Detail: d,
				Name:   name,
			})
		}
	}
	appendNever(sync.ModelApp, candidates.Apps, func(id string) sync.Detail {
		return sync.AppDetail{AppID: id}
	})
	appendNever(sync.ModelFixture, candidates.Fixtures, func(tag string) sync.Detail {
		return sync.FixtureDetail{Tag: tag}
	})
	appendNever(sync.ModelReport, candidates.Reports, func(id string) sync.Detail {
		return sync.ReportDetail{ReportID: id}
	})
	appendNever(sync.ModelKeyword, candidates.Keywords, func(id string) sync.Detail {
		return sync.KeywordDetail{KeywordID: id}
	})

	return view, nil
}

func detailKeys(recent []models.DomainLinkHistory) map[string]bool {
	keys := make(map[string]bool, len(recent))
	for _, row := range recent {
		keys[row.ModelType+"\x00"+string(row.ModelDetail.JSON)] = true
	}
	return keys
}

func detailKey(modelType sync.ModelType, raw []byte) string {
	return string(modelType) + "\x00" + string(raw)
}

func detailKeyFor(modelType sync.ModelType, detail sync.Detail) string {
	spec := sync.ModelSpec{Type: modelType, Detail: detail}
	encoded, err := spec.DetailJSON()
	if err != nil {
		return detailKey(modelType, nil)
	}
	return detailKey(modelType, encoded.JSON)
}

func itemName(modelType sync.ModelType, detail sync.Detail, candidates Candidates) string {
	switch d := detail.(type) {
	case sync.AppDetail:
		if name, ok := candidates.Apps[d.AppID]; ok {
			return name
		}
	case sync.FixtureDetail:
		if name, ok := candidates.Fixtures[d.Tag]; ok {
			return name
		}
		return d.Tag
	case sync.ReportDetail:
		if name, ok := candidates.Reports[d.ReportID]; ok {
			return name
		}
	case sync.KeywordDetail:
		if name, ok := candidates.Keywords[d.KeywordID]; ok {
			return name
		}
	}
	return modelType.DisplayName()
}
