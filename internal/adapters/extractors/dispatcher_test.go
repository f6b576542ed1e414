package extractors

import (
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/cc-transaction-logger/internal/domain/classifier"
	"github.com/eshaffer321/cc-transaction-logger/internal/domain/transaction"
)

// recorder tracks parser invocations in order.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) route(name string, match SubjectMatcher, result transaction.Record) Route {
	return Route{
		Name:  name,
		Match: match,
		Parse: func(in Input) transaction.Record {
			r.mu.Lock()
			r.calls = append(r.calls, name)
			r.mu.Unlock()
			return result
		},
	}
}

func ptr(s string) *string { return &s }

func card(c string) transaction.Record {
	return transaction.Record{CardNumber: c}
}

func TestDispatcher_ExactMatchShortCircuits(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher("Test", nil, nil, []Route{
		rec.route("first", Exact("A"), card("1111")),
		rec.route("second", Exact("B"), card("2222")),
	})

	got := d.Extract("plain body", ptr("B"))

	assert.Equal(t, "2222", got.CardNumber)
	assert.Equal(t, []string{"second"}, rec.calls)
}

func TestDispatcher_FallbackSweepInRegistrationOrder(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher("Test", nil, nil, []Route{
		rec.route("first", Exact("A"), transaction.Empty()),
		rec.route("second", Exact("B"), transaction.Empty()),
		rec.route("third", Exact("C"), card("3333")),
	})

	got := d.Extract("plain body", ptr("A"))

	assert.Equal(t, "3333", got.CardNumber)
	assert.Equal(t, []string{"first", "second", "third"}, rec.calls)
}

func TestDispatcher_UnknownSubjectSweepsAll(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher("Test", nil, nil, []Route{
		rec.route("first", Exact("A"), transaction.Empty()),
		rec.route("second", Exact("B"), card("2222")),
	})

	got := d.Extract("plain body", ptr("Something else"))
	assert.Equal(t, "2222", got.CardNumber)

	rec.calls = nil
	got = d.Extract("plain body", nil)
	assert.Equal(t, "2222", got.CardNumber)
	assert.Equal(t, []string{"first", "second"}, rec.calls)
}

func TestDispatcher_NoMatchReturnsEmpty(t *testing.T) {
	rec := &recorder{}
	partial := transaction.Record{Merchant: "no card"}.WithAmount(decimal.NewFromInt(5))
	d := NewDispatcher("Test", nil, nil, []Route{
		rec.route("first", Exact("A"), partial),
	})

	got := d.Extract("plain body", ptr("A"))

	assert.Equal(t, transaction.Empty(), got)
	assert.Equal(t, []string{"first"}, rec.calls)
}

func TestDispatcher_SelectsRoutesByContentType(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher("Test", nil,
		[]Route{rec.route("html", Exact("S"), card("1111"))},
		[]Route{rec.route("text", Exact("S"), card("2222"))},
	)

	assert.Equal(t, "1111", d.Extract("<div>receipt</div>", ptr("S")).CardNumber)
	assert.Equal(t, "2222", d.Extract("receipt", ptr("S")).CardNumber)
	assert.Equal(t, []string{"html"}, d.Routes(classifier.Markup))
	assert.Equal(t, []string{"text"}, d.Routes(classifier.PlainText))
}

func TestDispatcher_MarkupParsedOnceAndShared(t *testing.T) {
	var docs []any
	parse := func(in Input) transaction.Record {
		require.NotNil(t, in.Doc)
		docs = append(docs, in.Doc)
		return transaction.Empty()
	}
	d := NewDispatcher("Test", nil, []Route{
		{Name: "a", Match: Exact("A"), Parse: parse},
		{Name: "b", Match: Exact("B"), Parse: parse},
	}, nil)

	d.Extract("<html><body>x</body></html>", ptr("A"))

	require.Len(t, docs, 2)
	assert.Same(t, docs[0], docs[1])
}

func TestDispatcher_NoMarkupRoutes(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher("Test", nil, nil, []Route{rec.route("text", Exact("A"), card("1"))})

	assert.Equal(t, transaction.Empty(), d.Extract("<html>x</html>", ptr("A")))
	assert.Empty(t, rec.calls)
}

func TestDispatcher_RecoversParserPanic(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher("Test", nil, nil, []Route{
		{Name: "broken", Match: Exact("A"), Parse: func(Input) transaction.Record {
			var n map[string]*transaction.Record
			return *n["missing"]
		}},
		rec.route("working", Exact("B"), card("4242")),
	})

	got := d.Extract("body", ptr("A"))

	assert.Equal(t, "4242", got.CardNumber)
	assert.Equal(t, []string{"working"}, rec.calls)
}

func TestDispatcher_PrefixMatcher(t *testing.T) {
	rec := &recorder{}
	d := NewDispatcher("Test", nil, nil, []Route{
		rec.route("other", Exact("X"), transaction.Empty()),
		rec.route("receipt", Prefix("RECEIPT FOR"), card("9876")),
	})

	got := d.Extract("body", ptr("RECEIPT FOR YOUR PAYMENT #123"))

	assert.Equal(t, "9876", got.CardNumber)
	assert.Equal(t, []string{"receipt"}, rec.calls)
}

func TestSubjectMatchers(t *testing.T) {
	assert.True(t, Exact("Hello").Match("Hello"))
	assert.False(t, Exact("Hello").Match("Hello."))
	assert.True(t, Prefix("RECEIPT").Match("RECEIPT FOR"))
	assert.False(t, Prefix("RECEIPT").Match("receipt for"))
	assert.True(t, strings.HasPrefix(Prefix("X").String(), "prefix:"))
	assert.Equal(t, "exact:Hello", Exact("Hello").String())
}

func TestAmountHelpers(t *testing.T) {
	tests := []struct {
		name  string
		fn    func(string) (decimal.Decimal, bool)
		input string
		want  string
		ok    bool
	}{
		{"digits with currency", AmountFromDigits, "₱123.45", "123.45", true},
		{"digits with separators", AmountFromDigits, "PHP 1,234.50", "1234.5", true},
		{"digits nothing numeric", AmountFromDigits, "n/a", "0", false},
		{"parse trailing dot", ParseAmount, "1,500.", "1500", true},
		{"parse garbage", ParseAmount, "1.2.3", "0", false},
		{"cents window", CentsFromDigits, "000150000 ", "1500", true},
		{"cents formatted", CentsFromDigits, " 1,500.00 o", "1500", true},
		{"cents stray digits", CentsFromDigits, " on 01", "0.01", true},
		{"cents none", CentsFromDigits, "   ", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.fn(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestDispatcher_ConcurrentUse(t *testing.T) {
	d := NewDispatcher("Test", nil, []Route{
		{Name: "total", Match: Exact("A"), Parse: func(in Input) transaction.Record {
			cell := in.Doc.Find("td.total")
			if cell == nil {
				return transaction.Empty()
			}
			amount, _ := AmountFromDigits(cell.Text())
			return transaction.Record{CardNumber: "0001"}.WithAmount(amount)
		}},
	}, nil)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := d.Extract(`<div><table><tr><td class="total">₱10.00</td></tr></table></div>`, ptr("A"))
			assert.Equal(t, "0001", got.CardNumber)
			assert.True(t, decimal.NewFromInt(10).Equal(got.Amount.Decimal))
		}()
	}
	wg.Wait()
}
