package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"comanda/internal/domain/model"
	repo "comanda/internal/repository"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// 営業日の区切り（正午）
const BusinessCutoffHour = 12

const (
	topItemsLimit     = 5
	topModifiersLimit = 8
	peakHoursLimit    = 3
)

func ParsePeriod(s string) (Period, bool) {
	switch p := Period(s); p {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodYear:
		return p, true
	}
	return "", false
}

// [Start, End)
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// BusinessWindow は now を含む営業期間を返す。
// 区切りは正午で、週は月曜、月は1日、年は1月1日の正午から始まる。
func BusinessWindow(now time.Time, p Period, loc *time.Location) Window {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)
	y, m, d := now.Date()

	var start time.Time
	switch p {
	case PeriodWeek:
		sinceMonday := (int(now.Weekday()) + 6) % 7
		start = time.Date(y, m, d-sinceMonday, BusinessCutoffHour, 0, 0, 0, loc)
	case PeriodMonth:
		start = time.Date(y, m, 1, BusinessCutoffHour, 0, 0, 0, loc)
	case PeriodYear:
		start = time.Date(y, time.January, 1, BusinessCutoffHour, 0, 0, 0, loc)
	default:
		start = time.Date(y, m, d, BusinessCutoffHour, 0, 0, 0, loc)
	}

	//区切り前ならひとつ前の期間
	if now.Before(start) {
		start = shiftPeriod(start, p, -1)
	}
	return Window{Start: start, End: shiftPeriod(start, p, 1)}
}

// Previous は両端を1期間ずつ前にずらす
func (w Window) Previous(p Period) Window {
	return Window{Start: shiftPeriod(w.Start, p, -1), End: shiftPeriod(w.End, p, -1)}
}

func shiftPeriod(t time.Time, p Period, n int) time.Time {
	switch p {
	case PeriodWeek:
		return t.AddDate(0, 0, 7*n)
	case PeriodMonth:
		return t.AddDate(0, n, 0)
	case PeriodYear:
		return t.AddDate(n, 0, 0)
	default:
		return t.AddDate(0, 0, n)
	}
}

type Delta struct {
	Current  decimal.Decimal `json:"current"`
	Previous decimal.Decimal `json:"previous"`
	Diff     decimal.Decimal `json:"diff"`
	// 前期間が0ならnil
	Percent *float64 `json:"percent"`
}

func NewDelta(current, previous decimal.Decimal) Delta {
	d := Delta{Current: current, Previous: previous, Diff: current.Sub(previous)}
	if !previous.IsZero() {
		pct, _ := d.Diff.Div(previous.Abs()).Mul(decimal.NewFromInt(100)).Float64()
		d.Percent = &pct
	}
	return d
}

type SeriesPoint struct {
	Label string          `json:"label"`
	Start time.Time       `json:"start"`
	Total decimal.Decimal `json:"total"`
}

type HourStat struct {
	Label   string          `json:"label"`
	Revenue decimal.Decimal `json:"revenue"`
	Orders  int             `json:"orders"`
}

type RankEntry struct {
	Name  string `json:"name"`
	Value int64  `json:"value"`
}

// PeriodMetrics は1期間分の集計
type PeriodMetrics struct {
	Window        Window          `json:"window"`
	Revenue       decimal.Decimal `json:"revenue"`
	Tips          decimal.Decimal `json:"tips"`
	OrderCount    int             `json:"order_count"`
	AvgOrderValue decimal.Decimal `json:"avg_order_value"`
	TipsRate      decimal.Decimal `json:"tips_rate"`
}

type AnalyticsSummary struct {
	Period   Period        `json:"period"`
	Current  PeriodMetrics `json:"current"`
	Previous PeriodMetrics `json:"previous"`

	Investment decimal.Decimal `json:"investment"`
	NetProfit  decimal.Decimal `json:"net_profit"`

	RevenueDelta       Delta `json:"revenue_delta"`
	TipsDelta          Delta `json:"tips_delta"`
	OrderCountDelta    Delta `json:"order_count_delta"`
	AvgOrderValueDelta Delta `json:"avg_order_value_delta"`
	TipsRateDelta      Delta `json:"tips_rate_delta"`

	Sales        []SeriesPoint `json:"sales"`
	PeakHours    []HourStat    `json:"peak_hours"`
	Dayparts     []HourStat    `json:"dayparts"`
	TopItems     []RankEntry   `json:"top_items"`
	TopModifiers []RankEntry   `json:"top_modifiers"`
}

// Metrics は支払い済み注文の合計・チップ・件数などを出す。
// 平均客単価はチップを除き、チップ率は チップ / (売上 − チップ)。
func Metrics(w Window, orders []model.Order) PeriodMetrics {
	m := PeriodMetrics{Window: w, Revenue: decimal.Zero, Tips: decimal.Zero, AvgOrderValue: decimal.Zero, TipsRate: decimal.Zero}
	for _, o := range orders {
		m.Revenue = m.Revenue.Add(o.TotalAmount)
		m.Tips = m.Tips.Add(o.TipAmount)
	}
	m.OrderCount = len(orders)

	sales := m.Revenue.Sub(m.Tips)
	if m.OrderCount > 0 {
		m.AvgOrderValue = sales.Div(decimal.NewFromInt(int64(m.OrderCount)))
	}
	if sales.IsPositive() {
		m.TipsRate = m.Tips.Div(sales)
	}
	return m
}

// Summarize は今期と前期の注文から画面用の集計を組み立てる
func Summarize(p Period, cur Window, curOrders []model.Order, prevOrders []model.Order, investment decimal.Decimal, loc *time.Location) AnalyticsSummary {
	if loc == nil {
		loc = time.Local
	}
	c := Metrics(cur, curOrders)
	prev := Metrics(cur.Previous(p), prevOrders)

	s := AnalyticsSummary{
		Period:     p,
		Current:    c,
		Previous:   prev,
		Investment: investment,
		NetProfit:  c.Revenue.Sub(investment),

		RevenueDelta:       NewDelta(c.Revenue, prev.Revenue),
		TipsDelta:          NewDelta(c.Tips, prev.Tips),
		OrderCountDelta:    NewDelta(decimal.NewFromInt(int64(c.OrderCount)), decimal.NewFromInt(int64(prev.OrderCount))),
		AvgOrderValueDelta: NewDelta(c.AvgOrderValue, prev.AvgOrderValue),
		TipsRateDelta:      NewDelta(c.TipsRate, prev.TipsRate),

		Sales:        salesSeries(p, curOrders, loc),
		PeakHours:    []HourStat{},
		Dayparts:     []HourStat{},
		TopItems:     topItems(curOrders),
		TopModifiers: topModifiers(curOrders),
	}
	if p == PeriodDay {
		s.PeakHours = peakHours(curOrders, loc)
		s.Dayparts = dayparts(curOrders, loc)
	}
	return s
}

// 日は1時間ごと、週と月は1日ごと、年は1か月ごと
func salesSeries(p Period, orders []model.Order, loc *time.Location) []SeriesPoint {
	idx := make(map[time.Time]int)
	out := []SeriesPoint{}
	for _, o := range orders {
		t := o.CreatedAt.In(loc)
		y, m, d := t.Date()

		var start time.Time
		var label string
		switch p {
		case PeriodDay:
			start = time.Date(y, m, d, t.Hour(), 0, 0, 0, loc)
			label = fmt.Sprintf("%02d:00", t.Hour())
		case PeriodYear:
			start = time.Date(y, m, 1, 0, 0, 0, 0, loc)
			label = start.Format("2006-01")
		default:
			start = time.Date(y, m, d, 0, 0, 0, 0, loc)
			label = start.Format("2006-01-02")
		}

		if i, ok := idx[start]; ok {
			out[i].Total = out[i].Total.Add(o.TotalAmount)
			continue
		}
		idx[start] = len(out)
		out = append(out, SeriesPoint{Label: label, Start: start, Total: o.TotalAmount})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func peakHours(orders []model.Order, loc *time.Location) []HourStat {
	byHour := make(map[int]*HourStat)
	for _, o := range orders {
		h := o.CreatedAt.In(loc).Hour()
		st, ok := byHour[h]
		if !ok {
			st = &HourStat{Label: fmt.Sprintf("%02d:00", h), Revenue: decimal.Zero}
			byHour[h] = st
		}
		st.Revenue = st.Revenue.Add(o.TotalAmount)
		st.Orders++
	}

	out := make([]HourStat, 0, len(byHour))
	for _, st := range byHour {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Revenue.Equal(out[j].Revenue) {
			return out[i].Revenue.GreaterThan(out[j].Revenue)
		}
		return out[i].Label < out[j].Label
	})
	if len(out) > peakHoursLimit {
		out = out[:peakHoursLimit]
	}
	return out
}

// 営業日の並び（昼→夜→深夜→朝）
var daypartRanges = []struct {
	label      string
	start, end int
}{
	{"12:00-18:00", 12, 18},
	{"18:00-24:00", 18, 24},
	{"00:00-06:00", 0, 6},
	{"06:00-12:00", 6, 12},
}

func dayparts(orders []model.Order, loc *time.Location) []HourStat {
	out := make([]HourStat, len(daypartRanges))
	for i, r := range daypartRanges {
		out[i] = HourStat{Label: r.label, Revenue: decimal.Zero}
	}
	for _, o := range orders {
		h := o.CreatedAt.In(loc).Hour()
		for i, r := range daypartRanges {
			if h >= r.start && h < r.end {
				out[i].Revenue = out[i].Revenue.Add(o.TotalAmount)
				out[i].Orders++
				break
			}
		}
	}
	return out
}

// 取消明細は数えない
func topItems(orders []model.Order) []RankEntry {
	counts := make(map[string]int64)
	for _, o := range orders {
		for _, it := range o.Items {
			if it.Status != model.OrderItemStatusActive {
				continue
			}
			name := it.MenuItemName()
			if name == "" {
				name = "Unknown"
			}
			counts[name] += it.Quantity
		}
	}
	return rank(counts, topItemsLimit)
}

// 選択は1個あたりなので明細の数量を掛ける
func topModifiers(orders []model.Order) []RankEntry {
	counts := make(map[string]int64)
	for _, o := range orders {
		for _, it := range o.Items {
			if it.Status != model.OrderItemStatusActive {
				continue
			}
			for _, g := range it.Modifiers {
				for _, s := range g.Selections {
					if s.OptionName == "" {
						continue
					}
					c := int64(s.Quantity) * it.Quantity
					if c <= 0 {
						continue
					}
					counts[s.OptionName] += c
				}
			}
		}
	}
	return rank(counts, topModifiersLimit)
}

func rank(counts map[string]int64, limit int) []RankEntry {
	out := make([]RankEntry, 0, len(counts))
	for name, v := range counts {
		out = append(out, RankEntry{Name: name, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

type AnalyticsUsecase struct {
	tx    repo.TransactionManager
	clock Clock
	loc   *time.Location
	log   *slog.Logger
}

func NewAnalyticsUsecase(tx repo.TransactionManager, clock Clock, loc *time.Location, log *slog.Logger) *AnalyticsUsecase {
	if loc == nil {
		loc = time.Local
	}
	return &AnalyticsUsecase{tx: tx, clock: clock, loc: loc, log: log}
}

func (u *AnalyticsUsecase) Summary(ctx context.Context, storeID string, period string, investment decimal.Decimal) (AnalyticsSummary, error) {
	p, ok := ParsePeriod(period)
	if !ok {
		return AnalyticsSummary{}, NewHTTPError(http.StatusBadRequest, "invalid period")
	}
	if investment.IsNegative() {
		return AnalyticsSummary{}, NewHTTPError(http.StatusBadRequest, "invalid investment")
	}

	cur := BusinessWindow(u.clock.Now(), p, u.loc)
	prev := cur.Previous(p)

	//今期と前期は並行で読む
	var curOrders, prevOrders []model.Order
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		curOrders, err = u.paidOrders(gctx, storeID, cur)
		return err
	})
	g.Go(func() error {
		var err error
		prevOrders, err = u.paidOrders(gctx, storeID, prev)
		return err
	})
	if err := g.Wait(); err != nil {
		u.log.Error("db error", "op", "list paid orders", "store_id", storeID, "period", p, "err", err)
		return AnalyticsSummary{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	return Summarize(p, cur, curOrders, prevOrders, investment, u.loc), nil
}

func (u *AnalyticsUsecase) paidOrders(ctx context.Context, storeID string, w Window) ([]model.Order, error) {
	var orders []model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		orders, err = r.Orders().List(ctx, repo.OrderListFilter{
			StoreID:   storeID,
			Statuses:  []model.OrderStatus{model.OrderStatusPaid},
			From:      &w.Start,
			To:        &w.End,
			WithItems: true,
		})
		return err
	})
	return orders, err
}
