package quota

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"nathanbeddoewebdev/dialctl/internal/perf/domain"
)

// quotaView is the JSON shape of one country's quota.
type quotaView struct {
	Country      string  `json:"country"`
	DailyLimit   int     `json:"daily_limit"`
	Used         int     `json:"used"`
	UsagePercent float64 `json:"usage_percent"`
	Tier         string  `json:"tier"`
}

func newQuotaView(q domain.CliCountryQuota) quotaView {
	return quotaView{
		Country:      q.Country,
		DailyLimit:   q.DailyLimit,
		Used:         q.Used,
		UsagePercent: domain.UsagePercent(q.Used, q.DailyLimit),
		Tier:         domain.ClassifyUsage(q.Used, q.DailyLimit).String(),
	}
}

func formatLimit(limit int) string {
	if limit == 0 {
		return "unlimited"
	}
	return strconv.Itoa(limit)
}

func printQuotas(w io.Writer, quotas []domain.CliCountryQuota) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "COUNTRY\tUSED\tLIMIT\tUSAGE\tTIER")
	fmt.Fprintln(tw, "-------\t----\t-----\t-----\t----")
	for _, q := range quotas {
		v := newQuotaView(q)
		fmt.Fprintf(tw, "%s\t%d\t%s\t%.0f%%\t%s\n",
			strings.ToUpper(v.Country),
			v.Used,
			formatLimit(v.DailyLimit),
			v.UsagePercent,
			v.Tier,
		)
	}
	tw.Flush()
}
