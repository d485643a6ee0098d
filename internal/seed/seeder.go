// Package seed は起動中のバックエンドにデモデータを投入する。
//
// 事業者、カタログ部品、シリアル部品、各部品のデジタルツインを順にPOSTし、
// 既に存在するデータはスキップする。失敗しても次のデータへ進み、最後に件数を確認する。
package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nao1215/ichub/pkg/httpclient"
)

// 投入先のAPIパス。
const (
	PathBusinessPartner    = "/v1/partner-management/business-partner"
	PathCatalogPart        = "/v1/part-management/catalog-part"
	PathSerializedPart     = "/v1/part-management/serialized-part"
	PathCatalogPartTwin    = "/v1/twin-management/catalog-part-twin"
	PathSerializedPartTwin = "/v1/twin-management/serialized-part-twin"
)

// maxBodyPreview はエラー表示に含めるレスポンスボディの最大文字数。
const maxBodyPreview = 120

const rule = "============================================================"

// ErrUnhealthy はバックエンドのヘルスチェックが失敗した場合のエラー。
var ErrUnhealthy = errors.New("バックエンドが正常に応答しません")

// PhaseResult は1つのフェーズの投入結果。
type PhaseResult struct {
	// Name はフェーズ名。
	Name string
	// Created は作成した件数。
	Created int
	// Skipped はスキップした件数（既存・失敗を含む）。
	Skipped int
}

// Summary はシード全体の結果。
type Summary struct {
	Phases  []PhaseResult
	Elapsed time.Duration
}

// Seeder はデモデータの投入を行う。
type Seeder struct {
	client *httpclient.Client
	out    io.Writer
}

// NewSeeder は新しいSeederを生成する。進捗はoutに出力する。
func NewSeeder(client *httpclient.Client, out io.Writer) *Seeder {
	return &Seeder{client: client, out: out}
}

// item は1件の投入データ。
type item struct {
	// label は進捗表示に使う名前。
	label string
	// created は作成時に表示する名前。
	created string
	body    any
}

// phase は同じエンドポイントへ投入するデータのまとまり。
type phase struct {
	title   string
	summary string
	path    string
	items   []item
}

// Run はヘルスチェックの後、全フェーズを順に投入して件数を確認する。
// ヘルスチェックに失敗した場合のみエラーを返す。
func (s *Seeder) Run(ctx context.Context, d *Dataset) (*Summary, error) {
	s.printf("Seeding ICHub backend at %s\n", s.client.BaseURL())
	s.printf("%s\n", rule)

	if err := s.checkHealth(ctx); err != nil {
		s.printf("%v\n", err)
		return nil, err
	}
	s.printf("Backend health: OK\n")

	start := time.Now()
	summary := &Summary{}
	for _, p := range phases(d) {
		summary.Phases = append(summary.Phases, s.runPhase(ctx, p))
	}
	summary.Elapsed = time.Since(start)

	s.printf("\n%s\n", rule)
	s.printf("Seeding completed in %.1fs\n", summary.Elapsed.Seconds())

	s.verify(ctx)
	s.printf("\n")
	return summary, nil
}

// checkHealth はバックエンドの /health を確認する。
func (s *Seeder) checkHealth(ctx context.Context) error {
	err := s.client.GetJSON(ctx, "/health", nil)
	if err == nil {
		return nil
	}
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) {
		return fmt.Errorf("%w: Backend not healthy: %d", ErrUnhealthy, statusErr.StatusCode)
	}
	return fmt.Errorf("%w: Cannot connect to %s: %v", ErrUnhealthy, s.client.BaseURL(), err)
}

// runPhase は1つのフェーズのデータを順にPOSTする。
func (s *Seeder) runPhase(ctx context.Context, p phase) PhaseResult {
	s.printf("\n=== Seeding %s ===\n", p.title)

	result := PhaseResult{Name: p.title}
	for _, it := range p.items {
		err := s.client.PostJSON(ctx, p.path, it.body, nil)
		switch outcome, detail := classify(err); outcome {
		case outcomeCreated:
			s.printf("  + %s\n", it.created)
			result.Created++
		case outcomeExists:
			s.printf("  ~ %s (already exists)\n", it.label)
			result.Skipped++
		default:
			s.printf("  ! %s: %s\n", it.label, detail)
			result.Skipped++
		}
	}

	s.printf("  %s: %d created, %d skipped\n", p.summary, result.Created, result.Skipped)
	return result
}

// verify は投入後の件数を読み出して表示する。
func (s *Seeder) verify(ctx context.Context) {
	s.printf("\n=== Verification ===\n")
	checks := []struct {
		label string
		path  string
	}{
		{"Business Partners", PathBusinessPartner},
		{"Catalog Parts", PathCatalogPart},
		{"Serialized Parts", PathSerializedPart},
		{"Catalog Part Twins", PathCatalogPartTwin},
		{"Serialized Part Twins", PathSerializedPartTwin},
	}
	for _, c := range checks {
		var data any
		err := s.client.GetJSON(ctx, c.path, &data)
		if err != nil {
			var statusErr *httpclient.StatusError
			if errors.As(err, &statusErr) {
				s.printf("  %s: HTTP %d\n", c.label, statusErr.StatusCode)
			} else {
				s.printf("  %s: %v\n", c.label, err)
			}
			continue
		}
		count := "?"
		if list, ok := data.([]any); ok {
			count = fmt.Sprint(len(list))
		}
		s.printf("  %s: %s records\n", c.label, count)
	}
}

func (s *Seeder) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

type outcome int

const (
	outcomeCreated outcome = iota
	outcomeExists
	outcomeFailed
)

// classify はPOSTの結果を作成・既存・失敗に分類する。
// 409または本文に "already exists" を含む応答は既存とみなす。
func classify(err error) (outcome, string) {
	if err == nil {
		return outcomeCreated, ""
	}

	var statusErr *httpclient.StatusError
	if !errors.As(err, &statusErr) {
		return outcomeFailed, err.Error()
	}
	if statusErr.StatusCode == http.StatusConflict ||
		strings.Contains(strings.ToLower(statusErr.Body), "already exists") {
		return outcomeExists, ""
	}
	return outcomeFailed, fmt.Sprintf("%d %s", statusErr.StatusCode, truncate(statusErr.Body, maxBodyPreview))
}

// truncate は文字列を先頭からn文字までに切り詰める。
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// phases はデータセットから投入フェーズを組み立てる。
func phases(d *Dataset) []phase {
	partners := phase{title: "Business Partners", summary: "Partners", path: PathBusinessPartner}
	for _, bp := range d.BusinessPartners {
		partners.items = append(partners.items, item{
			label:   bp.Name,
			created: fmt.Sprintf("%s (%s)", bp.Name, bp.BPNL),
			body:    bp,
		})
	}

	catalog := phase{title: "Catalog Parts", summary: "Catalog parts", path: PathCatalogPart}
	catalogTwins := phase{title: "Catalog Part Twins", summary: "Twins", path: PathCatalogPartTwin}
	for _, p := range d.CatalogParts {
		catalog.items = append(catalog.items, item{
			label:   p.Name,
			created: fmt.Sprintf("%s (%s)", p.Name, p.ManufacturerPartID),
			body:    p,
		})
		twinLabel := "Twin for " + p.Name
		catalogTwins.items = append(catalogTwins.items, item{
			label:   twinLabel,
			created: twinLabel,
			body: catalogPartTwin{
				ManufacturerID:     p.ManufacturerID,
				ManufacturerPartID: p.ManufacturerPartID,
			},
		})
	}

	serialized := phase{title: "Serialized Parts", summary: "Serialized parts", path: PathSerializedPart}
	serializedTwins := phase{title: "Serialized Part Twins", summary: "Twins", path: PathSerializedPartTwin}
	for _, p := range d.SerializedParts {
		serialized.items = append(serialized.items, item{
			label:   p.DisplayName(),
			created: p.DisplayName(),
			body:    p,
		})
		twinLabel := "Twin for " + p.DisplayName()
		serializedTwins.items = append(serializedTwins.items, item{
			label:   twinLabel,
			created: twinLabel,
			body: serializedPartTwin{
				ManufacturerID:     p.ManufacturerID,
				ManufacturerPartID: p.ManufacturerPartID,
				PartInstanceID:     p.PartInstanceID,
			},
		})
	}

	return []phase{partners, catalog, serialized, catalogTwins, serializedTwins}
}
