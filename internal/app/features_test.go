package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"testing"

	"github.com/cucumber/godog"

	"github.com/jsamuelsen/quote-sync/internal/domain"
	"github.com/jsamuelsen/quote-sync/internal/ports"
)

// featureContext holds state shared across step definitions within a scenario.
type featureContext struct {
	durable    *fakeKV
	session    *fakeKV
	remote     funcRemote
	store      *QuoteStore
	reconciler *Reconciler
	svc        *QuoteService
	lastErr    error
}

func newFeatureContext() *featureContext {
	fc := &featureContext{
		durable: newFakeKV(),
		session: newFakeKV(),
	}

	fc.remote = funcRemote{fetch: func(context.Context) ([]domain.Quote, error) {
		return []domain.Quote{}, nil
	}}

	return fc
}

// InitializeScenario registers step definitions for each scenario.
func InitializeScenario(sc *godog.ScenarioContext) {
	var fc *featureContext

	sc.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
		fc = newFeatureContext()
		return ctx, nil
	})

	sc.Step(`^an empty local storage$`, func() error { return nil })
	sc.Step(`^the local collection:$`, func(table *godog.Table) error { return fc.theLocalCollection(table) })
	sc.Step(`^the remote source returns:$`, func(table *godog.Table) error { return fc.theRemoteReturns(table) })
	sc.Step(`^the remote source is unreachable$`, func() error { return fc.theRemoteIsUnreachable() })
	sc.Step(`^I load the store$`, func(ctx context.Context) error { return fc.iLoadTheStore(ctx) })
	sc.Step(`^I sync with the server$`, func(ctx context.Context) error { return fc.iSync(ctx) })
	sc.Step(`^I add a quote "([^"]*)" in category "([^"]*)"$`, func(ctx context.Context, text, category string) error {
		return fc.iAddAQuote(ctx, text, category)
	})
	sc.Step(`^I import:$`, func(ctx context.Context, doc *godog.DocString) error { return fc.iImport(ctx, doc) })
	sc.Step(`^the collection should be:$`, func(table *godog.Table) error { return fc.theCollectionShouldBe(table) })
	sc.Step(`^the collection should have (\d+) quotes$`, func(n int) error { return fc.theCollectionShouldHave(n) })
	sc.Step(`^the categories should be "([^"]*)"$`, func(list string) error { return fc.theCategoriesShouldBe(list) })
	sc.Step(`^the sync status should be "([^"]*)"$`, func(msg string) error { return fc.theSyncStatusShouldBe(msg) })
	sc.Step(`^the last error should be an? (validation|parse|unavailable) error$`, func(kind string) error {
		return fc.theLastErrorShouldBe(kind)
	})
}

func quotesFromTable(table *godog.Table) ([]domain.Quote, error) {
	if len(table.Rows) == 0 {
		return nil, errors.New("table needs a text | category header")
	}

	quotes := make([]domain.Quote, 0, len(table.Rows)-1)

	for _, row := range table.Rows[1:] {
		if len(row.Cells) != 2 {
			return nil, fmt.Errorf("expected 2 cells, got %d", len(row.Cells))
		}

		quotes = append(quotes, domain.Quote{Text: row.Cells[0].Value, Category: row.Cells[1].Value})
	}

	return quotes, nil
}

func (fc *featureContext) theLocalCollection(table *godog.Table) error {
	quotes, err := quotesFromTable(table)
	if err != nil {
		return err
	}

	data, err := json.Marshal(quotes)
	if err != nil {
		return err
	}

	fc.durable.data[ports.KeyQuotes] = string(data)

	return fc.iLoadTheStore(context.Background())
}

func (fc *featureContext) theRemoteReturns(table *godog.Table) error {
	quotes, err := quotesFromTable(table)
	if err != nil {
		return err
	}

	fc.remote.fetch = func(context.Context) ([]domain.Quote, error) { return quotes, nil }

	return nil
}

func (fc *featureContext) theRemoteIsUnreachable() error {
	fc.remote.fetch = func(context.Context) ([]domain.Quote, error) {
		return nil, errors.New("dial tcp: connection refused")
	}

	return nil
}

func (fc *featureContext) iLoadTheStore(ctx context.Context) error {
	fc.store = NewQuoteStore(QuoteStoreConfig{
		Durable: fc.durable,
		Session: fc.session,
		Logger:  discardLogger(),
	})

	if _, err := fc.store.Load(ctx); err != nil {
		return err
	}

	// The remote is read through fc so later steps can swap it.
	fc.reconciler = NewReconciler(ReconcilerConfig{
		Store: fc.store,
		Remote: funcRemote{
			fetch: func(ctx context.Context) ([]domain.Quote, error) { return fc.remote.fetch(ctx) },
		},
		Logger: discardLogger(),
	})

	fc.svc = NewQuoteService(QuoteServiceConfig{
		Store:      fc.store,
		Reconciler: fc.reconciler,
		Logger:     discardLogger(),
	})

	return nil
}

func (fc *featureContext) iSync(ctx context.Context) error {
	_, fc.lastErr = fc.svc.SyncNow(ctx)
	return nil
}

func (fc *featureContext) iAddAQuote(ctx context.Context, text, category string) error {
	_, fc.lastErr = fc.svc.AddQuote(ctx, text, category)
	fc.svc.WaitPushes()

	return nil
}

func (fc *featureContext) iImport(ctx context.Context, doc *godog.DocString) error {
	_, fc.lastErr = fc.svc.Import(ctx, []byte(doc.Content))
	return nil
}

func (fc *featureContext) theCollectionShouldBe(table *godog.Table) error {
	want, err := quotesFromTable(table)
	if err != nil {
		return err
	}

	if got := fc.svc.List(""); !reflect.DeepEqual(want, got) {
		return fmt.Errorf("expected collection %v, got %v", want, got)
	}

	return nil
}

func (fc *featureContext) theCollectionShouldHave(n int) error {
	if got := fc.store.Len(); got != n {
		return fmt.Errorf("expected %d quotes, got %d", n, got)
	}

	return nil
}

func (fc *featureContext) theCategoriesShouldBe(list string) error {
	want := strings.Split(list, ", ")

	if got, _ := fc.svc.Categories(); !reflect.DeepEqual(want, got) {
		return fmt.Errorf("expected categories %v, got %v", want, got)
	}

	return nil
}

func (fc *featureContext) theSyncStatusShouldBe(msg string) error {
	if got := fc.svc.Status().Message; got != msg {
		return fmt.Errorf("expected status %q, got %q", msg, got)
	}

	return nil
}

func (fc *featureContext) theLastErrorShouldBe(kind string) error {
	checks := map[string]func(error) bool{
		"validation":  domain.IsValidation,
		"parse":       domain.IsParse,
		"unavailable": domain.IsUnavailable,
	}

	if !checks[kind](fc.lastErr) {
		return fmt.Errorf("expected a %s error, got %v", kind, fc.lastErr)
	}

	return nil
}

// TestFeatures runs the GoDog scenarios under testdata/features.
func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"testdata/features"},
			TestingT: t,
			Strict:   true,
			Tags:     os.Getenv("GODOG_TAGS"),
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
