package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/robfig/cron"
	log "github.com/sirupsen/logrus"
)

const DefaultPollSchedule = "@every 30s"

// HTTPProvider polls a remote document on a cron schedule.
type HTTPProvider struct {
	snapshot
	url      string
	schedule string
	client   *http.Client
}

func NewHTTPProvider(url, schedule string, client *http.Client, onChange func()) *HTTPProvider {
	if schedule == "" {
		schedule = DefaultPollSchedule
	}
	if client == nil {
		client = http.DefaultClient
	}
	hp := &HTTPProvider{url: url, schedule: schedule, client: client}
	hp.onChange = onChange
	return hp
}

func (hp *HTTPProvider) URI() string {
	return hp.url
}

func (hp *HTTPProvider) Initialize() error {
	return hp.fetch(context.Background())
}

func (hp *HTTPProvider) Watch(ctx context.Context) error {
	c := cron.New()
	err := c.AddFunc(hp.schedule, func() {
		if err := hp.fetch(ctx); err != nil {
			log.WithField("uri", hp.url).Error(err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid poll schedule %q: %w", hp.schedule, err)
	}
	c.Start()
	defer c.Stop()

	<-ctx.Done()
	return nil
}

func (hp *HTTPProvider) fetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hp.url, nil)
	if err != nil {
		return err
	}
	resp, err := hp.client.Do(req)
	if err != nil {
		return fmt.Errorf("unable to fetch %s: %w", hp.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unable to fetch %s: unexpected status %s", hp.url, resp.Status)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	yamlFormat := isYAML(hp.url) || strings.Contains(resp.Header.Get("Content-Type"), "yaml")
	fm, err := parse(raw, yamlFormat)
	if err != nil {
		return fmt.Errorf("%s: %w", hp.url, err)
	}
	hp.store(fm)
	log.WithField("uri", hp.url).Debug("flag values fetched")
	return nil
}
