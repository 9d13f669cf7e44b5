package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archtdea/internal/evo"
	"archtdea/internal/model"
)

var _ evo.Observer = (*Recorder)(nil)

func scrape(t *testing.T, r *Recorder) string {
	t.Helper()
	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestRecorderTracksRunProgress(t *testing.T) {
	r := NewRecorder()
	r.ObserveGeneration(model.GenerationDiagnostics{Generation: 7, BestFitness: 0.25, ArchiveSize: 11, TerritorySize: 0.04, Preferences: 3})
	r.ObserveAdmission("admitted")
	r.ObserveAdmission("admitted")
	r.ObserveAdmission("rejected")
	r.ObserveInteraction(7, 4, 2)
	r.ObserveArchiveOverflow(14, 10)

	body := scrape(t, r)
	for _, line := range []string{
		"archtdea_generation 7",
		"archtdea_archive_size 11",
		"archtdea_territory_size 0.04",
		"archtdea_preferences 3",
		`archtdea_archive_admissions_total{outcome="admitted"} 2`,
		`archtdea_archive_admissions_total{outcome="rejected"} 1`,
		"archtdea_candidates_shown_total 4",
		"archtdea_preferences_added_total 2",
		"archtdea_archive_overflow_total 1",
		"archtdea_archive_excess 4",
	} {
		assert.Contains(t, body, line)
	}
}

func TestRecordersDoNotShareRegistries(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	a.ObserveInteraction(1, 3, 1)
	assert.Contains(t, scrape(t, a), "archtdea_interactions_total 1")
	assert.Contains(t, scrape(t, b), "archtdea_interactions_total 0")

	families, err := b.Registry().Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}
