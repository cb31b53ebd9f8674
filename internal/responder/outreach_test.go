package responder

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/spigell/zhipin-responder/internal/browser/browsertest"
	"github.com/spigell/zhipin-responder/internal/matching"
	"github.com/spigell/zhipin-responder/internal/risk"
	"github.com/spigell/zhipin-responder/internal/zhipin"
)

func goodListing(id string) *zhipin.Listing {
	return &zhipin.Listing{
		ID:          id,
		Title:       "后端工程师",
		Company:     "字节跳动",
		City:        "北京·海淀区",
		Description: "Go Redis Kubernetes 微服务",
		Recruiter:   "王女士",
	}
}

func poorListing(id string) *zhipin.Listing {
	return &zhipin.Listing{ID: id, Title: "会计", Company: "某财务公司", City: "上海"}
}

func TestOutreachSendsMessage(t *testing.T) {
	h := newHarness(t, Options{}, Deps{})
	listing := goodListing("a1")

	ok, err := h.session.Outreach(context.Background(), listing, testProfile(), "你好，想了解一下这个岗位")
	if err != nil {
		t.Fatalf("outreach: %v", err)
	}
	if !ok {
		t.Fatalf("expected outreach to be sent")
	}

	navs := h.navigations()
	if last := navs[len(navs)-1]; last != zhipin.DetailURL("a1") {
		t.Fatalf("expected detail navigation, got %s", last)
	}

	fills := h.page.EventsOf(browsertest.EventFill)
	if len(fills) != 1 || fills[0].Selector != zhipin.SelectorMessage || fills[0].Text != "你好，想了解一下这个岗位" {
		t.Fatalf("unexpected fills %+v", fills)
	}

	clicks := h.page.EventsOf(browsertest.EventClick)
	if len(clicks) != 2 {
		t.Fatalf("expected start chat and send clicks, got %d", len(clicks))
	}
	send := clicks[1]
	cx, cy := sendBox.Center()
	if send.X < cx-clickJitterBound || send.X > cx+clickJitterBound || send.Y < cy-clickJitterBound || send.Y > cy+clickJitterBound {
		t.Fatalf("send click %v,%v too far from %v,%v", send.X, send.Y, cx, cy)
	}
	if moves := h.page.EventsOf(browsertest.EventMove); len(moves) < 20 {
		t.Fatalf("expected pointer trajectories before clicks, got %d moves", len(moves))
	}

	if st := h.session.Status(); st.Outreach != 1 {
		t.Fatalf("expected 1 recorded outreach, got %d", st.Outreach)
	}
}

// clickJitterBound matches the ±5px aim jitter of the humanizer.
const clickJitterBound = 5

func TestOutreachRendersDefaultMessage(t *testing.T) {
	h := newHarness(t, Options{}, Deps{})
	listing := goodListing("a1")
	profile := testProfile()

	if _, err := h.session.Outreach(context.Background(), listing, profile, ""); err != nil {
		t.Fatalf("outreach: %v", err)
	}

	fills := h.page.EventsOf(browsertest.EventFill)
	if len(fills) != 1 || fills[0].Text != RenderMessage("", listing, profile) {
		t.Fatalf("unexpected message %+v", fills)
	}
}

func TestOutreachWithoutStartChatButton(t *testing.T) {
	h := newHarness(t, Options{}, Deps{})
	h.site.detail = func(p *browsertest.Page, _ string) {
		chatPage(p)
		p.Set(zhipin.SelectorStartChat)
	}

	ok, err := h.session.Outreach(context.Background(), goodListing("a1"), testProfile(), "hi")
	if err != nil || !ok {
		t.Fatalf("expected success, got %v, %v", ok, err)
	}
	if clicks := h.page.EventsOf(browsertest.EventClick); len(clicks) != 1 {
		t.Fatalf("expected only the send click, got %d", len(clicks))
	}
}

func TestOutreachRejectsListingWithoutID(t *testing.T) {
	h := newHarness(t, Options{}, Deps{})
	before := len(h.navigations())

	_, err := h.session.Outreach(context.Background(), &zhipin.Listing{Title: "x"}, testProfile(), "hi")
	if !errors.Is(err, ErrNoListingID) {
		t.Fatalf("expected ErrNoListingID, got %v", err)
	}
	if len(h.navigations()) != before {
		t.Fatalf("no navigation expected")
	}
}

func TestOutreachQuota(t *testing.T) {
	h := newHarness(t, Options{MaxOutreach: 2}, Deps{})
	ctx := context.Background()

	for i := range 2 {
		ok, err := h.session.Outreach(ctx, goodListing(fmt.Sprintf("a%d", i)), testProfile(), "hi")
		if err != nil || !ok {
			t.Fatalf("outreach %d: %v, %v", i, ok, err)
		}
	}

	before := len(h.navigations())
	ok, err := h.session.Outreach(ctx, goodListing("a3"), testProfile(), "hi")
	if err != nil {
		t.Fatalf("quota refusal must not be an error, got %v", err)
	}
	if ok {
		t.Fatalf("third outreach must be refused")
	}
	if len(h.navigations()) != before {
		t.Fatalf("refused outreach must not navigate")
	}
	if h.logs.FilterMessage("outreach refused").Len() != 1 {
		t.Fatalf("expected a refusal log")
	}
}

func TestOutreachDefaultQuota(t *testing.T) {
	h := newHarness(t, Options{}, Deps{})
	ctx := context.Background()

	for i := range 20 {
		ok, err := h.session.Outreach(ctx, goodListing(fmt.Sprintf("a%d", i)), testProfile(), "hi")
		if err != nil || !ok {
			t.Fatalf("outreach %d: %v, %v", i, ok, err)
		}
	}
	if ok, err := h.session.Outreach(ctx, goodListing("a20"), testProfile(), "hi"); ok || err != nil {
		t.Fatalf("21st outreach must be refused quietly, got %v, %v", ok, err)
	}
	if st := h.session.Status(); st.Outreach != 20 || st.Remaining != 0 {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestOutreachDurationQuota(t *testing.T) {
	h := newHarness(t, Options{MaxDuration: 10 * time.Minute}, Deps{})
	h.clock.Advance(11 * time.Minute)

	ok, err := h.session.Outreach(context.Background(), goodListing("a1"), testProfile(), "hi")
	if ok || err != nil {
		t.Fatalf("expected quiet refusal, got %v, %v", ok, err)
	}
}

func TestOutreachRespectsRateWindow(t *testing.T) {
	h := newHarness(t, Options{MaxRequests: 2, Window: time.Minute}, Deps{})
	ctx := context.Background()
	start := h.clock.Now()

	for i := range 3 {
		if ok, err := h.session.Outreach(ctx, goodListing(fmt.Sprintf("a%d", i)), testProfile(), "hi"); err != nil || !ok {
			t.Fatalf("outreach %d: %v, %v", i, ok, err)
		}
	}

	if elapsed := h.clock.Now().Sub(start); elapsed < time.Minute {
		t.Fatalf("third admission must wait for the window, elapsed %s", elapsed)
	}
	if h.logs.FilterMessage("rate window full, waiting").Len() == 0 {
		t.Fatalf("expected the governor to wait")
	}
}

func TestOutreachRiskBlockedLatches(t *testing.T) {
	h := newHarness(t, Options{}, Deps{})
	ctx := context.Background()

	h.site.detail = func(p *browsertest.Page, _ string) {
		p.Set(risk.SelectorForbidden, &browsertest.Element{})
	}
	ok, err := h.session.Outreach(ctx, goodListing("a1"), testProfile(), "hi")
	if ok || !risk.IsBlocked(err) {
		t.Fatalf("expected risk block, got %v, %v", ok, err)
	}

	h.site.detail = nil
	before := len(h.navigations())
	ok, err = h.session.Outreach(ctx, goodListing("a2"), testProfile(), "hi")
	if ok || !risk.IsBlocked(err) {
		t.Fatalf("blocked session must refuse outreach, got %v, %v", ok, err)
	}
	if len(h.navigations()) != before {
		t.Fatalf("blocked session must not navigate")
	}
	if _, err := h.session.Search(ctx, &zhipin.SearchParams{Keyword: "golang"}); !risk.IsBlocked(err) {
		t.Fatalf("blocked session must refuse search, got %v", err)
	}
	if st := h.session.Status(); st.Risk != risk.RiskBlocked.String() || st.Outreach != 0 {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestOutreachCaptchaDoesNotLatch(t *testing.T) {
	h := newHarness(t, Options{}, Deps{})
	ctx := context.Background()

	h.site.detail = func(p *browsertest.Page, _ string) {
		p.Set(risk.SelectorSlider, &browsertest.Element{})
	}
	_, err := h.session.Outreach(ctx, goodListing("a1"), testProfile(), "hi")
	var de *risk.DetectedError
	if !errors.As(err, &de) || de.State != risk.CaptchaSuspected {
		t.Fatalf("expected captcha detection, got %v", err)
	}
	if clicks := h.page.EventsOf(browsertest.EventClick); len(clicks) != 0 {
		t.Fatalf("no clicks expected on a challenge page, got %d", len(clicks))
	}

	h.site.detail = nil
	ok, err := h.session.Outreach(ctx, goodListing("a2"), testProfile(), "hi")
	if err != nil || !ok {
		t.Fatalf("captcha must not block later outreach, got %v, %v", ok, err)
	}
}

func TestInteractionFailuresAbortSession(t *testing.T) {
	h := newHarness(t, Options{}, Deps{})
	ctx := context.Background()

	h.site.detail = func(p *browsertest.Page, _ string) {
		chatPage(p)
		p.Set(zhipin.SelectorSend)
	}

	ok, err := h.session.Outreach(ctx, goodListing("a1"), testProfile(), "hi")
	if ok || !errors.Is(err, ErrSessionAborted) {
		t.Fatalf("expected abort, got %v, %v", ok, err)
	}
	if n := h.clock.SleepsAtLeast(retryBackoff[0]); n != DefaultMaxErrors-1 {
		t.Fatalf("expected %d backoffs, got %d", DefaultMaxErrors-1, n)
	}
	if h.logs.FilterMessage("interaction failed").Len() != DefaultMaxErrors {
		t.Fatalf("expected %d failure logs", DefaultMaxErrors)
	}
	if !h.session.Status().Aborted {
		t.Fatalf("status must report abort")
	}

	h.site.detail = nil
	if _, err := h.session.Outreach(ctx, goodListing("a2"), testProfile(), "hi"); !errors.Is(err, ErrSessionAborted) {
		t.Fatalf("aborted session must refuse actions, got %v", err)
	}
}

func TestInteractionRetryRecovers(t *testing.T) {
	h := newHarness(t, Options{}, Deps{})

	h.site.detail = func(p *browsertest.Page, _ string) {
		chatPage(p)
		p.Set(zhipin.SelectorSend)
	}
	h.clock.onSleep = func(d time.Duration) {
		if d >= retryBackoff[0] {
			h.page.Set(zhipin.SelectorSend, &browsertest.Element{Box: sendBox})
		}
	}

	ok, err := h.session.Outreach(context.Background(), goodListing("a1"), testProfile(), "hi")
	if err != nil || !ok {
		t.Fatalf("expected recovery, got %v, %v", ok, err)
	}
	if h.session.Status().Aborted {
		t.Fatalf("session must stay usable")
	}
}

func TestBatchOutreach(t *testing.T) {
	h := newHarness(t, Options{}, Deps{})
	profile := testProfile()

	good, poor := goodListing("a1"), poorListing("b1")
	ai := goodListing("a2")
	ai.AI = &zhipin.AIAssessment{Fit: true, Message: "王女士您好，我做了四年 Go 后端"}

	minScore := 30
	if s := matching.Score(poor, profile, ""); s >= minScore {
		t.Fatalf("poor listing scored %d", s)
	}
	if s := matching.Score(good, profile, ""); s < minScore {
		t.Fatalf("good listing scored %d", s)
	}

	listings := &zhipin.Listings{Items: []*zhipin.Listing{good, poor, ai}}
	report, err := h.session.BatchOutreach(context.Background(), listings, profile, minScore, "{name} 对 {company} 的 {title} 感兴趣")
	if err != nil {
		t.Fatalf("batch: %v", err)
	}

	if report.Total != 3 || report.Matched != 2 || report.Sent != 2 || report.Failed != 0 {
		t.Fatalf("unexpected report %+v", report)
	}
	want := []string{StatusSuccess, StatusSkipped, StatusSuccess}
	for i, d := range report.Details {
		if d.Status != want[i] {
			t.Fatalf("detail %d: expected %s, got %s", i, want[i], d.Status)
		}
	}
	if good.Score == 0 || report.Details[0].Score != good.Score {
		t.Fatalf("scores must be recorded on listings and details")
	}

	fills := h.page.EventsOf(browsertest.EventFill)
	if len(fills) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(fills))
	}
	if fills[0].Text != "李雷 对 字节跳动 的 后端工程师 感兴趣" {
		t.Fatalf("unexpected templated message %q", fills[0].Text)
	}
	if fills[1].Text != ai.AI.Message {
		t.Fatalf("AI drafted message must win, got %q", fills[1].Text)
	}
}

func TestBatchOutreachRequiresProfile(t *testing.T) {
	h := newHarness(t, Options{}, Deps{})

	if _, err := h.session.BatchOutreach(context.Background(), &zhipin.Listings{}, nil, 0, ""); !errors.Is(err, ErrProfileRequired) {
		t.Fatalf("expected ErrProfileRequired, got %v", err)
	}
}

func TestBatchOutreachStopsOnRisk(t *testing.T) {
	h := newHarness(t, Options{}, Deps{})

	h.site.detail = func(p *browsertest.Page, url string) {
		if url == zhipin.DetailURL("a2") {
			p.Set(risk.SelectorRiskDialog, &browsertest.Element{})
			return
		}
		chatPage(p)
	}

	listings := &zhipin.Listings{Items: []*zhipin.Listing{goodListing("a1"), goodListing("a2"), goodListing("a3")}}
	report, err := h.session.BatchOutreach(context.Background(), listings, testProfile(), 0, "")
	if !risk.IsBlocked(err) {
		t.Fatalf("expected risk block, got %v", err)
	}
	if report.Sent != 1 || report.Failed != 1 || len(report.Details) != 2 {
		t.Fatalf("unexpected partial report %+v", report)
	}
	if report.Details[1].Status != StatusFailed || report.Details[1].Error == "" {
		t.Fatalf("unexpected failed detail %+v", report.Details[1])
	}
}

func TestBatchOutreachStopsOnFlaggedDescription(t *testing.T) {
	h := newHarness(t, Options{FullDescription: true}, Deps{})
	h.site.detail = func(p *browsertest.Page, _ string) {
		p.Set(risk.SelectorSlider, &browsertest.Element{})
	}

	listings := &zhipin.Listings{Items: make([]*zhipin.Listing, 0, 5)}
	for i := range 5 {
		listings.Items = append(listings.Items, goodListing(fmt.Sprintf("a%d", i)))
	}

	report, err := h.session.BatchOutreach(context.Background(), listings, testProfile(), 0, "")
	if !errors.Is(err, risk.ErrDetected) {
		t.Fatalf("expected captcha detection, got %v", err)
	}
	if report.Sent != 0 || report.Total != 5 {
		t.Fatalf("unexpected report %+v", report)
	}
	if n := h.detailVisits(); n != 1 {
		t.Fatalf("expected the batch to stop after one listing page, got %d visits", n)
	}
}

func TestBatchOutreachPausesBetweenListings(t *testing.T) {
	h := newHarness(t, Options{}, Deps{})
	before := len(h.clock.Sleeps())

	listings := &zhipin.Listings{Items: []*zhipin.Listing{poorListing("b1"), goodListing(""), poorListing("b2")}}
	report, err := h.session.BatchOutreach(context.Background(), listings, testProfile(), 30, "")
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if report.Sent != 0 || report.Failed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	pauses := h.clock.Sleeps()[before:]
	if len(pauses) != 2 {
		t.Fatalf("expected a pause after every listing but the last, got %v", pauses)
	}
	for _, d := range pauses {
		if d < betweenListings[0] || d > betweenListings[1] {
			t.Fatalf("pause %s out of range", d)
		}
	}
}

func TestBatchOutreachStopsOnQuota(t *testing.T) {
	h := newHarness(t, Options{MaxOutreach: 1}, Deps{})

	listings := &zhipin.Listings{Items: []*zhipin.Listing{goodListing("a1"), goodListing("a2"), goodListing("a3")}}
	report, err := h.session.BatchOutreach(context.Background(), listings, testProfile(), 0, "")
	if err != nil {
		t.Fatalf("quota must not fail the batch: %v", err)
	}
	if report.Sent != 1 || len(report.Details) != 2 || report.Details[1].Status != StatusQuotaExceeded {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestBatchOutreachContinuesPastMissingID(t *testing.T) {
	h := newHarness(t, Options{}, Deps{})

	listings := &zhipin.Listings{Items: []*zhipin.Listing{goodListing(""), goodListing("a2")}}
	report, err := h.session.BatchOutreach(context.Background(), listings, testProfile(), 0, "")
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if report.Failed != 1 || report.Sent != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
}

func TestOutreachSelectedKeepsScores(t *testing.T) {
	h := newHarness(t, Options{}, Deps{})

	poor := poorListing("b1")
	poor.Score = 1
	listings := &zhipin.Listings{Items: []*zhipin.Listing{poor}}

	report, err := h.session.OutreachSelected(context.Background(), listings, testProfile(), "")
	if err != nil {
		t.Fatalf("outreach selected: %v", err)
	}
	if report.Sent != 1 || report.Details[0].Score != 1 {
		t.Fatalf("selected listings must be sent as scored, got %+v", report)
	}
}
