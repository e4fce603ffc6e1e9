package handlers

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-icp-dashboard/internal/cycle"
	"github.com/tbourn/go-icp-dashboard/internal/services"
)

func cycleRouter(user string, cs CycleService) *gin.Engine {
	h := New(Deps{Cycle: cs})
	r := gin.New()
	if user != "" {
		r.Use(asUser(user))
	}
	r.GET("/targets", h.Targets)
	r.POST("/batch/keywords", h.AddToBatch)
	r.POST("/requests", h.Submit)
	r.PATCH("/requests/:id", h.EditItem)
	r.GET("/archives", h.Archives)
	return r
}

func TestCycle_RequiresSession(t *testing.T) {
	r := cycleRouter("", &stubCycle{})
	for _, path := range []string{"/targets", "/archives"} {
		w := serve(r, http.MethodGet, path, nil)
		if w.Code != http.StatusUnauthorized || errBody(t, w).Code != ErrCodeUnauthorized {
			t.Fatalf("%s: %d %s", path, w.Code, w.Body.String())
		}
	}
}

func TestTargets_QueryDefaults(t *testing.T) {
	cs := &stubCycle{}
	r := cycleRouter("acme", cs)

	dataOf(t, serve(r, http.MethodGet, "/targets", nil), nil)
	if cs.lastUser != "acme" || cs.lastQuery != (services.ViewQuery{Sort: services.SortAlpha, Page: 1}) {
		t.Fatalf("defaults: %q %+v", cs.lastUser, cs.lastQuery)
	}

	dataOf(t, serve(r, http.MethodGet, "/targets?search=crm&sort=length&page=abc", nil), nil)
	if cs.lastQuery != (services.ViewQuery{Search: "crm", Sort: services.SortLength, Page: 1}) {
		t.Fatalf("explicit: %+v", cs.lastQuery)
	}
}

func TestAddToBatch(t *testing.T) {
	cs := &stubCycle{}
	r := cycleRouter("acme", cs)

	w := serve(r, http.MethodPost, "/batch/keywords", gin.H{"keywords": []string{}})
	if w.Code != http.StatusBadRequest || errBody(t, w).Error != msgMissingKeyword {
		t.Fatalf("empty: %d %s", w.Code, w.Body.String())
	}

	w = serve(r, http.MethodPost, "/batch/keywords", gin.H{"keywords": []string{"crm"}})
	var got struct {
		Added []string     `json:"added"`
		Batch *cycle.Batch `json:"batch"`
	}
	dataOf(t, w, &got)
	if got.Added == nil || len(got.Added) != 0 || got.Batch == nil || got.Batch.Keywords[0] != "crm" {
		t.Fatalf("got %+v", got)
	}

	cs.err = cycle.ErrLocked
	w = serve(r, http.MethodPost, "/batch/keywords", gin.H{"keywords": []string{"crm"}})
	if w.Code != http.StatusConflict || errBody(t, w).Code != ErrCodeCycleLocked {
		t.Fatalf("locked: %d %s", w.Code, w.Body.String())
	}
}

func TestSubmit_QuotaAndBlank(t *testing.T) {
	cs := &stubCycle{}
	r := cycleRouter("acme", cs)

	w := serve(r, http.MethodPost, "/requests", gin.H{"keyword": " "})
	if w.Code != http.StatusBadRequest || errBody(t, w).Error != msgMissingKeyword {
		t.Fatalf("blank: %d %s", w.Code, w.Body.String())
	}

	var resp SubmitResponse
	dataOf(t, serve(r, http.MethodPost, "/requests", gin.H{"keyword": "crm"}), &resp)
	if len(resp.Items) != 1 || resp.Items[0].Keyword != "crm" || resp.Locked {
		t.Fatalf("resp = %+v", resp)
	}

	cs.err = cycle.ErrQuotaReached
	w = serve(r, http.MethodPost, "/requests", gin.H{"keyword": "crm"})
	if w.Code != http.StatusConflict || errBody(t, w).Code != ErrCodeQuotaReached {
		t.Fatalf("quota: %d %s", w.Code, w.Body.String())
	}
}

func TestEditItem(t *testing.T) {
	cs := &stubCycle{}
	r := cycleRouter("acme", cs)

	for _, id := range []string{"0", "-2", "x"} {
		w := serve(r, http.MethodPatch, "/requests/"+id, gin.H{"password": "0000"})
		if w.Code != http.StatusBadRequest {
			t.Fatalf("id %s: %d", id, w.Code)
		}
	}

	w := serve(r, http.MethodPatch, "/requests/3", gin.H{"password": "nope", "title": "T"})
	if w.Code != http.StatusForbidden || errBody(t, w).Code != ErrCodeBadPassword {
		t.Fatalf("bad password: %d %s", w.Code, w.Body.String())
	}

	var item cycle.RequestedItem
	dataOf(t, serve(r, http.MethodPatch, "/requests/3", gin.H{"password": "0000", "title": "New title"}), &item)
	if item.ID != 3 || cs.lastID != 3 || cs.lastPatch.Title == nil || *cs.lastPatch.Title != "New title" {
		t.Fatalf("item=%+v patch=%+v", item, cs.lastPatch)
	}
	if cs.lastPatch.URL != nil {
		t.Fatal("unset fields must stay nil")
	}

	cs.err = cycle.ErrItemNotFound
	if w := serve(r, http.MethodPatch, "/requests/9", gin.H{"password": "0000"}); w.Code != http.StatusNotFound {
		t.Fatalf("missing: %d", w.Code)
	}
}

func TestArchives_PageParam(t *testing.T) {
	r := cycleRouter("acme", &stubCycle{})
	var resp ArchivesResponse
	dataOf(t, serve(r, http.MethodGet, "/archives?page=2", nil), &resp)
	if resp.Page.Page != 2 || resp.Archives == nil {
		t.Fatalf("resp = %+v", resp)
	}
}
