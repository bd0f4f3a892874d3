package ledger

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/trogers1052/portfolio-ledger/internal/models"
)

// MatchesFilter reports whether a lot sale falls within the filter
func MatchesFilter(sale *models.LotSale, f models.GainsFilter) bool {
	if f.Year != 0 && sale.SaleDate.UTC().Year() != f.Year {
		return false
	}
	if f.Symbol != "" && !strings.EqualFold(sale.Symbol, f.Symbol) {
		return false
	}
	return true
}

// RealizedGains selects the state's lot sales matching f, ordered by sale date
func RealizedGains(s *State, f models.GainsFilter) *models.RealizedGainsReport {
	records := s.salesOf(func(ls *models.LotSale) bool { return MatchesFilter(ls, f) })
	sort.SliceStable(records, func(i, j int) bool { return records[i].SaleDate.Before(records[j].SaleDate) })
	return &models.RealizedGainsReport{
		Records: records,
		Summary: SummarizeGains(records),
	}
}

// SummarizeGains totals realized gains, split by term and by sign
func SummarizeGains(records []*models.LotSale) models.RealizedGainsSummary {
	sum := models.RealizedGainsSummary{
		TotalRealized: decimal.Zero,
		TotalGains:    decimal.Zero,
		TotalLosses:   decimal.Zero,
		ShortTerm:     emptyTerm(),
		LongTerm:      emptyTerm(),
	}

	for _, r := range records {
		term := &sum.LongTerm
		if r.IsShortTerm {
			term = &sum.ShortTerm
		}
		term.Total = term.Total.Add(r.RealizedGain)
		term.SharesSold = term.SharesSold.Add(r.SharesSold)
		term.Count++
		if r.RealizedGain.IsNegative() {
			term.Losses = term.Losses.Add(r.RealizedGain)
			sum.TotalLosses = sum.TotalLosses.Add(r.RealizedGain)
		} else {
			term.Gains = term.Gains.Add(r.RealizedGain)
			sum.TotalGains = sum.TotalGains.Add(r.RealizedGain)
		}
		sum.TotalRealized = sum.TotalRealized.Add(r.RealizedGain)
	}
	sum.RecordCount = len(records)
	return sum
}

func emptyTerm() models.TermSummary {
	return models.TermSummary{
		Total:      decimal.Zero,
		Gains:      decimal.Zero,
		Losses:     decimal.Zero,
		SharesSold: decimal.Zero,
	}
}
