package playwright

import (
	"testing"

	pw "github.com/playwright-community/playwright-go"

	"github.com/spigell/zhipin-responder/internal/browser"
)

func TestToPlaywright(t *testing.T) {
	jar := []browser.Cookie{
		{Name: "wt2", Value: "a", Domain: ".zhipin.com", HTTPOnly: true, Expires: 1893456000, SameSite: "Lax"},
		{Name: "lang", Value: "zh"},
	}

	got := toPlaywright(jar, "https://www.zhipin.com/")
	if len(got) != 2 {
		t.Fatalf("expected 2 cookies, got %d", len(got))
	}

	first := got[0]
	if first.Domain == nil || *first.Domain != ".zhipin.com" || first.Path == nil || *first.Path != "/" {
		t.Fatalf("unexpected scoping %+v", first)
	}
	if first.URL != nil {
		t.Fatalf("domain cookie must not carry a url")
	}
	if first.HttpOnly == nil || !*first.HttpOnly || first.Expires == nil || *first.Expires != 1893456000 {
		t.Fatalf("unexpected flags %+v", first)
	}
	if first.SameSite == nil || *first.SameSite != pw.SameSiteAttribute("Lax") {
		t.Fatalf("unexpected same site %v", first.SameSite)
	}

	second := got[1]
	if second.URL == nil || *second.URL != "https://www.zhipin.com/" || second.Expires != nil {
		t.Fatalf("unexpected fallback cookie %+v", second)
	}

	if dropped := toPlaywright(jar, ""); len(dropped) != 1 {
		t.Fatalf("domainless cookie must be dropped without a fallback, got %d", len(dropped))
	}
}

func TestFromPlaywright(t *testing.T) {
	strict := pw.SameSiteAttribute("Strict")
	got := fromPlaywright([]pw.Cookie{
		{Name: "wt2", Value: "a", Domain: ".zhipin.com", Path: "/", Secure: true, SameSite: &strict},
		{Name: "plain", Value: "b"},
	})

	if len(got) != 2 {
		t.Fatalf("expected 2 cookies, got %d", len(got))
	}
	if got[0].SameSite != "Strict" || !got[0].Secure || got[0].Domain != ".zhipin.com" {
		t.Fatalf("unexpected cookie %+v", got[0])
	}
	if got[1].SameSite != "" {
		t.Fatalf("unexpected same site %q", got[1].SameSite)
	}
}
