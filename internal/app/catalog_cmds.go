package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/weiliu/h5client/internal/catalog"
	"github.com/weiliu/h5client/internal/logging"
	"github.com/weiliu/h5client/internal/models"
	"github.com/weiliu/h5client/internal/pager"
	"github.com/weiliu/h5client/internal/playback"
)

const defaultWatchDuration = 60.0

func (c *cli) newVideosCmd() *cobra.Command {
	var (
		keyword  string
		pages    int
		pageSize int
	)

	cmd := &cobra.Command{
		Use:   "videos",
		Short: "List published videos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			deps, err := c.services(ctx)
			if err != nil {
				return err
			}

			loader := pager.New(deps.Catalog.Fetcher(), pageSize)
			loader.SetQuery(ctx, keyword)
			for i := 1; i < pages; i++ {
				if !loader.RequestNext(ctx) {
					break
				}
			}
			result := listing[models.VideoSummary]{
				Items:      loader.Items(),
				PageNumber: loader.PageNumber(),
				TotalPages: loader.TotalPages(),
				State:      loader.State().String(),
			}
			c.out().print(result, func(w io.Writer) {
				writeVideos(w, result.Items)
				fmt.Fprintf(w, "\n%d videos, %d pages (%s)\n", len(result.Items), result.TotalPages, result.State)
			})
			// Pages loaded before a failure stay on screen.
			return loader.Err()
		},
	}

	cmd.Flags().StringVarP(&keyword, "keyword", "k", "", "Filter by keyword")
	cmd.Flags().IntVar(&pages, "pages", 1, "Number of pages to load")
	cmd.Flags().IntVar(&pageSize, "page-size", catalog.DefaultPageSize, "Videos per page")

	return cmd
}

func (c *cli) newVideoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "video <id>",
		Short: "Show one video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseVideoID(args[0])
			if err != nil {
				return err
			}
			deps, err := c.services(cmd.Context())
			if err != nil {
				return err
			}

			video, err := deps.Details.Detail(cmd.Context(), id)
			if err != nil {
				return err
			}
			c.out().print(video, func(w io.Writer) { writeVideo(w, video) })
			return nil
		},
	}
}

type watchOptions struct {
	step      time.Duration
	interval  time.Duration
	duration  float64
	continues int
}

// watchReport is the JSON shape of a watch session.
type watchReport struct {
	VideoID   int64    `json:"videoId"`
	Title     string   `json:"title"`
	Entitled  bool     `json:"entitled"`
	Duration  float64  `json:"duration"`
	Position  float64  `json:"position"`
	Phase     string   `json:"phase"`
	Continues int      `json:"continues"`
	Events    []string `json:"events"`
}

func (c *cli) newWatchCmd() *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch <id>",
		Short: "Play a video under the free-trial policy",
		Long: `watch plays a video on a simulated media engine. Viewers without a
membership are stopped when the trial limit is reached; --continue-trial
resumes the trial that many times before the viewer is sent to subscribe.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseVideoID(args[0])
			if err != nil {
				return err
			}
			deps, err := c.services(cmd.Context())
			if err != nil {
				return err
			}
			return c.watch(cmd.Context(), deps, id, opts)
		},
	}

	cmd.Flags().DurationVar(&opts.step, "step", time.Second, "Content time per tick")
	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "Wall time between ticks (0 runs as fast as possible)")
	cmd.Flags().Float64Var(&opts.duration, "duration", 0, "Video length in seconds (probed when unset)")
	cmd.Flags().IntVar(&opts.continues, "continue-trial", 0, "Times to continue the trial before subscribing")

	return cmd
}

func (c *cli) watch(ctx context.Context, deps Dependencies, id int64, opts watchOptions) error {
	logger := logging.FromContext(ctx)

	video, err := deps.Details.Detail(ctx, id)
	if err != nil {
		return err
	}
	if _, err := deps.Recorder.Enqueue(ctx, video.ID); err != nil {
		logger.Warn("history not recorded", slog.Int64("videoId", video.ID), slog.String("error", err.Error()))
	}

	duration := opts.duration
	if duration <= 0 {
		duration = c.probeDuration(ctx, deps, video)
	}

	report := watchReport{
		VideoID:  video.ID,
		Title:    video.Title,
		Entitled: deps.Session.IsVIP(),
		Duration: duration,
	}
	event := func(format string, a ...any) {
		report.Events = append(report.Events, fmt.Sprintf(format, a...))
	}

	engine := playback.NewSimulatedEngine(duration)
	var gate *playback.Gate
	gate = playback.NewGate(report.Entitled,
		playback.WithCap(c.cfg.TrialCap),
		playback.WithUpsell(func() { event("trial limit reached at %gs", gate.Cap()) }),
	)
	player := playback.NewPlayer(gate)
	if err := player.Mount(ctx, func(context.Context) (playback.MediaEngine, error) { return engine, nil }); err != nil {
		return err
	}
	defer player.Unmount()

	if err := player.Play(); err != nil {
		return err
	}
	event("playing %q", video.Title)

	for {
		if err := engine.Run(ctx, opts.interval, opts.step.Seconds()); err != nil {
			return err
		}
		if !player.State().ModalOpen {
			event("ended at %gs", engine.Position())
			break
		}
		if report.Continues < opts.continues {
			report.Continues++
			if err := player.ContinueTrial(); err != nil {
				return err
			}
			event("continued trial at %gs", engine.Position())
			continue
		}
		report.Position = engine.Position()
		player.Subscribe(c.nav, deps.Session.IsLoggedIn())
		event("left player to subscribe")
		break
	}

	if report.Position == 0 {
		report.Position = engine.Position()
	}
	report.Phase = gate.State().Phase.String()

	c.out().print(report, func(w io.Writer) {
		for _, e := range report.Events {
			fmt.Fprintln(w, e)
		}
		if !report.Entitled && gate.State().Phase != playback.LimitReached {
			fmt.Fprintf(w, "%ds of trial left\n", gate.RemainingSeconds())
		}
	})
	return nil
}

// probeDuration asks ffprobe for the stream length, falling back to a fixed
// length when probing is disabled or fails.
func (c *cli) probeDuration(ctx context.Context, deps Dependencies, video models.VideoSummary) float64 {
	if deps.Probe == nil || video.StreamURL() == "" {
		return defaultWatchDuration
	}
	d, err := deps.Probe.Duration(ctx, video.StreamURL())
	if err != nil {
		logging.FromContext(ctx).Warn("probe duration", slog.String("url", video.StreamURL()), slog.String("error", err.Error()))
		return defaultWatchDuration
	}
	return d.Seconds()
}

func parseVideoID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: %q", catalog.ErrInvalidVideoID, raw)
	}
	return id, nil
}
