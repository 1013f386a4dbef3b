package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/twilio/twilio-go/twiml"

	"firewatch/internal/logger"
)

type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
}

// callCreator is the slice of the Twilio REST API the provider uses.
type callCreator interface {
	CreateCall(params *openapi.CreateCallParams) (*openapi.ApiV2010Call, error)
}

// TwilioProvider places a voice call that reads the alert and the nearest
// emergency resources, then waits for one key press.
type TwilioProvider struct {
	logger      *logger.Logger
	calls       callCreator
	cfg         TwilioConfig
	resources   ResourceFinder
	radiusMiles float64
	now         func() time.Time
}

// NewTwilioProvider creates the provider. resources may be nil.
func NewTwilioProvider(logger *logger.Logger, cfg TwilioConfig, resources ResourceFinder, radiusMiles float64) *TwilioProvider {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return newTwilioProvider(logger, client.Api, cfg, resources, radiusMiles)
}

func newTwilioProvider(logger *logger.Logger, calls callCreator, cfg TwilioConfig, resources ResourceFinder, radiusMiles float64) *TwilioProvider {
	return &TwilioProvider{
		logger:      logger,
		calls:       calls,
		cfg:         cfg,
		resources:   resources,
		radiusMiles: radiusMiles,
		now:         time.Now,
	}
}

func (p *TwilioProvider) PlaceCall(ctx context.Context, call Call) error {
	var res Resources
	if p.resources != nil {
		found, err := p.resources.Nearby(ctx, call.Lat, call.Lon, p.radiusMiles)
		if err != nil {
			p.logger.Warning("Emergency resource lookup failed", "camera", call.Label, "error", err)
		}
		res = found
	}

	doc, err := BuildTwiML(AlertMessage(call.Label, p.now(), res))
	if err != nil {
		return err
	}

	// The SDK call takes no context; don't start one that is already dead.
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &openapi.CreateCallParams{}
	params.SetTo(call.Destination)
	params.SetFrom(p.cfg.From)
	params.SetTwiml(doc)

	created, err := p.calls.CreateCall(params)
	if err != nil {
		return fmt.Errorf("twilio create call: %w", err)
	}

	sid := ""
	if created != nil && created.Sid != nil {
		sid = *created.Sid
	}
	p.logger.Info("Emergency call initiated", "sid", sid, "to", call.Destination)
	return nil
}

// AlertMessage is the text read to the callee.
func AlertMessage(label string, at time.Time, res Resources) string {
	var b strings.Builder
	fmt.Fprintf(&b, "This is a critical fire alert notification. Fire has been detected on camera %s at %s.",
		label, at.Format("03:04 PM"))

	for _, r := range []struct {
		kind  string
		place *Place
	}{
		{"hospital", res.Hospital},
		{"fire station", res.FireStation},
		{"shelter", res.Shelter},
	} {
		if r.place == nil {
			continue
		}
		fmt.Fprintf(&b, " The nearest %s is %s, %.2f kilometers away at %s.",
			r.kind, r.place.Name, r.place.DistanceKm, r.place.Address)
	}

	b.WriteString(" Press any key to acknowledge this alert.")
	return b.String()
}

// BuildTwiML wraps message in a Say/Pause/Gather voice response.
func BuildTwiML(message string) (string, error) {
	verbs := []twiml.Element{
		&twiml.VoiceSay{Message: message, Voice: "alice", Language: "en-US"},
		&twiml.VoicePause{Length: "1"},
		&twiml.VoiceGather{NumDigits: "1", Timeout: "10"},
	}
	out, err := twiml.Voice(verbs)
	if err != nil {
		return "", fmt.Errorf("failed to build twiml: %w", err)
	}
	return out, nil
}
