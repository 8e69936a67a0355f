package telephony

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/twilio/twilio-go/twiml"
)

// RecordingStore receives finished call recordings.
type RecordingStore interface {
	UploadRecording(key string, data []byte) error
}

type Config struct {
	AccountSID string
	AuthToken  string
}

// Service handles the phone entry point: inbound Twilio webhooks, signature
// validation, and archival of completed call recordings.
type Service struct {
	config     Config
	store      RecordingStore
	client     *twilio.RestClient
	httpClient *http.Client
}

func New(config Config, store RecordingStore) *Service {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: config.AccountSID,
		Password: config.AuthToken,
	})
	return &Service{
		config:     config,
		store:      store,
		client:     client,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *Service) RegisterHandlers(e *echo.Echo) {
	e.POST("/twilio/voice", s.handleVoice, s.authMiddleware)
	e.POST("/twilio/recording-status", s.handleRecordingStatus, s.authMiddleware)
}

func (s *Service) handleVoice(c echo.Context) error {
	params := c.Get("twilioParams").(map[string]string)
	callSID := params["CallSid"]
	from := params["From"]
	log.Printf("inbound call from %s, CallSID: %s", from, callSID)

	statusURL := buildURL(c.Request(), "/twilio/recording-status")
	if callSID != "" {
		go func() {
			if err := s.startRecording(callSID, statusURL); err != nil {
				log.Printf("failed to start recording for %s: %v", callSID, err)
			}
		}()
	} else {
		log.Printf("no CallSid in webhook params; call will not be recorded")
	}

	greeting := &twiml.VoiceSay{Message: "Hi, you've reached our booking line. Tell us your name, email, the service you'd like, and a date and time that works, and we'll get you scheduled."}
	pause := &twiml.VoicePause{Length: "300"}
	goodbye := &twiml.VoiceSay{Message: "Thanks, we'll follow up shortly. Goodbye!"}

	response, err := twiml.Voice([]twiml.Element{greeting, pause, goodbye, &twiml.VoiceHangup{}})
	if err != nil {
		return c.String(http.StatusInternalServerError, "failed to build TwiML")
	}
	c.Response().Header().Set(echo.HeaderContentType, "application/xml")
	return c.String(http.StatusOK, response)
}

func (s *Service) handleRecordingStatus(c echo.Context) error {
	params := c.Get("twilioParams").(map[string]string)
	status := params["RecordingStatus"]
	recordingURL := params["RecordingUrl"]
	recordingSID := params["RecordingSid"]
	log.Printf("recording status: %s, SID: %s", status, recordingSID)

	if status == "completed" && recordingURL != "" {
		filename := fmt.Sprintf("recording_%s_%d.wav", recordingSID, time.Now().Unix())
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.archiveRecording(ctx, recordingURL, filename); err != nil {
				log.Printf("failed to archive recording: %v", err)
			} else {
				log.Printf("recording archived: %s", filename)
			}
		}()
	}
	return c.String(http.StatusOK, "OK")
}

// startRecording turns on call-level recording for an in-progress call so
// the whole conversation lands in one archive, not just the caller's leg.
func (s *Service) startRecording(callSID, callbackURL string) error {
	params := &twilioApi.CreateCallRecordingParams{}
	params.SetRecordingStatusCallback(callbackURL)
	params.SetRecordingStatusCallbackMethod("POST")
	params.SetRecordingStatusCallbackEvent([]string{"completed"})
	params.SetRecordingChannels("mono")

	_, err := s.client.Api.CreateCallRecording(callSID, params)
	if err != nil {
		return fmt.Errorf("failed to start recording: %w", err)
	}
	return nil
}

func (s *Service) archiveRecording(ctx context.Context, recordingURL, filename string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, recordingURL+".wav", nil)
	if err != nil {
		return err
	}
	req.SetBasicAuth(s.config.AccountSID, s.config.AuthToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download recording failed: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return s.store.UploadRecording(filename, data)
}

func (s *Service) authMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if s.config.AuthToken == "" {
			return c.String(http.StatusInternalServerError, "Missing TWILIO_AUTH_TOKEN")
		}

		body, err := io.ReadAll(c.Request().Body)
		if err != nil {
			return c.String(http.StatusBadRequest, "Failed to read body")
		}
		formData, err := url.ParseQuery(string(body))
		if err != nil {
			return c.String(http.StatusBadRequest, "Failed to parse form")
		}
		params := make(map[string]string)
		for key, values := range formData {
			if len(values) > 0 {
				params[key] = values[0]
			}
		}

		signature := c.Request().Header.Get("X-Twilio-Signature")
		requestURL := buildURL(c.Request(), c.Request().URL.Path)
		if !s.validateSignature(signature, requestURL, params) {
			return c.String(http.StatusUnauthorized, "Invalid signature")
		}

		c.Set("twilioParams", params)
		return next(c)
	}
}

// validateSignature checks the X-Twilio-Signature HMAC: the full URL plus
// every POST param, key-sorted, key+value concatenated.
func (s *Service) validateSignature(signature, url string, params map[string]string) bool {
	if s.config.AuthToken == "" || signature == "" {
		return false
	}
	data := url
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		data += k + params[k]
	}

	mac := hmac.New(sha1.New, []byte(s.config.AuthToken))
	mac.Write([]byte(data))
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

func buildURL(r *http.Request, path string) string {
	scheme := "https"
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
		if strings.Contains(host, "localhost") || strings.Contains(host, "127.0.0.1") {
			scheme = "http"
		}
	}
	return fmt.Sprintf("%s://%s%s", scheme, host, path)
}
