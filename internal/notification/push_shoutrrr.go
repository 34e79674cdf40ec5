package notification

import (
	"context"
	"io"
	"log"
	"slices"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/pondwatch/pondwatch-go/internal/conf"
	"github.com/pondwatch/pondwatch-go/internal/errors"
)

// ShoutrrrProvider sends push notifications through nicholas-fedor/shoutrrr.
// One sender covers all configured service URLs.
type ShoutrrrProvider struct {
	enabled bool
	urls    []string
	sender  *router.ServiceRouter
	timeout time.Duration
}

// NewShoutrrrProvider builds the push provider from settings.
func NewShoutrrrProvider(cfg *conf.PushSettings) *ShoutrrrProvider {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &ShoutrrrProvider{
		enabled: cfg.Enabled,
		urls:    slices.Clone(cfg.URLs),
		timeout: timeout,
	}
}

func (s *ShoutrrrProvider) Name() string    { return "shoutrrr" }
func (s *ShoutrrrProvider) Channel() string { return ChannelPush }
func (s *ShoutrrrProvider) Enabled() bool   { return s.enabled }

// ValidateConfig builds the sender, which also validates the URLs.
func (s *ShoutrrrProvider) ValidateConfig() error {
	if !s.enabled {
		return nil
	}
	if len(s.urls) == 0 {
		return errors.Newf("push enabled but no service URLs configured").
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	sender, err := shoutrrr.CreateSender(s.urls...)
	if err != nil {
		return errors.New(err).
			Component("notification").
			Category(errors.CategoryConfiguration).
			Build()
	}
	sender.Timeout = s.timeout
	sender.SetLogger(log.New(io.Discard, "", 0))
	s.sender = sender
	return nil
}

// Send delivers the payload to every configured service URL.
func (s *ShoutrrrProvider) Send(ctx context.Context, p *Payload) error {
	if s.sender == nil {
		if err := s.ValidateConfig(); err != nil {
			return err
		}
	}
	_ = ctx // the router applies its own timeout

	params := stypes.Params{}
	params.SetTitle(p.Title)

	body := p.Message
	if len(p.Recommendations) > 0 {
		body += "\n\n" + strings.Join(p.Recommendations, "\n")
	}

	var failed []string
	for _, err := range s.sender.Send(body, &params) {
		if err != nil {
			failed = append(failed, err.Error())
		}
	}
	if len(failed) > 0 {
		return errors.Newf("push delivery failed: %s", strings.Join(failed, "; ")).
			Component("notification").
			Category(errors.CategoryNotification).
			Build()
	}
	return nil
}
