package app

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/weiliu/h5client/internal/models"
)

const (
	outputText = "text"
	outputJSON = "json"
)

// output renders command results as text or indented JSON.
type output struct {
	format string
	w      io.Writer
}

// print writes data as JSON, or calls text when the format is text.
func (o *output) print(data any, text func(w io.Writer)) {
	if o.format == outputJSON || text == nil {
		enc := json.NewEncoder(o.w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(data)
		return
	}
	text(o.w)
}

func (o *output) message(msg string) {
	o.print(map[string]string{"message": msg}, func(w io.Writer) {
		fmt.Fprintln(w, msg)
	})
}

func writeVideos(w io.Writer, videos []models.VideoSummary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tWATCHES\tPUBLISHED\tTAGS")
	for _, v := range videos {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\t%s\n", v.ID, v.Title, v.TotalWatch, v.PublishDate, strings.Join(v.TagList(), ","))
	}
	_ = tw.Flush()
}

func writeVideo(w io.Writer, v models.VideoSummary) {
	fmt.Fprintf(w, "%s (#%d)\n", v.Title, v.ID)
	if v.Reduce != "" {
		fmt.Fprintf(w, "  %s\n", v.Reduce)
	}
	fmt.Fprintf(w, "  watches:   %d\n", v.TotalWatch)
	fmt.Fprintf(w, "  published: %s\n", v.PublishDate)
	if tags := v.TagList(); len(tags) > 0 {
		fmt.Fprintf(w, "  tags:      %s\n", strings.Join(tags, ", "))
	}
	if u := v.StreamURL(); u != "" {
		fmt.Fprintf(w, "  stream:    %s\n", u)
	}
}

func writeProfile(w io.Writer, p models.Profile) {
	fmt.Fprintf(w, "%s (%s, #%d)\n", p.NickName, p.Username, p.ID)
	if p.Note != "" {
		fmt.Fprintf(w, "  note:   %s\n", p.Note)
	}
	if p.Email != "" {
		fmt.Fprintf(w, "  email:  %s\n", p.Email)
	}
	if p.Icon != "" {
		fmt.Fprintf(w, "  avatar: %s\n", p.Icon)
	}
	if p.IsVIP() {
		fmt.Fprintln(w, "  member: VIP")
	} else {
		fmt.Fprintln(w, "  member: free trial")
	}
}

func writeHistory(w io.Writer, entries []models.HistoryEntry) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VIDEO\tTITLE\tWATCHED")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", e.VideoID, e.VideoName, e.CreateDate)
	}
	_ = tw.Flush()
}

func writePlans(w io.Writer, plans []models.MembershipPlan) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIER\tNAME\tPRICE")
	for _, p := range plans {
		fmt.Fprintf(tw, "%s\t%s\t¥%g\n", p.Tier, p.Name, p.Price)
	}
	_ = tw.Flush()
}

// listing is the JSON shape of a loader-driven listing.
type listing[T any] struct {
	Items      []T    `json:"items"`
	PageNumber int    `json:"pageNumber"`
	TotalPages int    `json:"totalPages"`
	State      string `json:"state"`
}
