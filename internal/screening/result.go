package screening

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"call-screener/internal/apperrors"
	"call-screener/internal/calls"
)

// Recommendation is the classifier's suggested next step for the call.
type Recommendation string

const (
	RecommendForward       Recommendation = "Forward"
	RecommendTakeMessage   Recommendation = "TakeMessage"
	RecommendBlockCaller   Recommendation = "BlockCaller"
	RecommendOfferCallback Recommendation = "OfferCallback"
)

var recommendations = []Recommendation{RecommendForward, RecommendTakeMessage, RecommendBlockCaller, RecommendOfferCallback}

// Result is the classifier output. It is returned to the caller and never stored as a whole.
type Result struct {
	Intent            string         `json:"intent"`
	Confidence        float64        `json:"confidence"`
	SpamLikelihood    float64        `json:"spam_likelihood"`
	Sentiment         string         `json:"sentiment"`
	SuggestedResponse *string        `json:"suggested_response,omitempty"`
	Recommendation    Recommendation `json:"action_recommendation"`
}

type rawResult struct {
	Intent            string          `json:"intent"`
	Confidence        json.RawMessage `json:"confidence"`
	SpamLikelihood    json.RawMessage `json:"spam_likelihood"`
	Sentiment         string          `json:"sentiment"`
	SuggestedResponse *string         `json:"suggested_response"`
	Recommendation    string          `json:"action_recommendation"`
}

// ParseResult decodes a classifier payload. Markdown code fences around the JSON are
// tolerated. spam_likelihood must be a JSON number; it and confidence are clamped to [0, 1].
// Any other deviation from the expected shape yields ErrMalformedResult.
func ParseResult(payload []byte) (Result, error) {
	const op = "screening.parse_result"

	body := stripFences(payload)
	var raw rawResult
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&raw); err != nil {
		return Result{}, apperrors.Wrap(apperrors.ErrMalformedResult, op, err)
	}

	spam, ok := jsonNumber(raw.SpamLikelihood)
	if !ok {
		return Result{}, apperrors.New(apperrors.ErrMalformedResult, op, "spam_likelihood is not a number: %s", string(raw.SpamLikelihood))
	}
	conf := 0.0
	if len(raw.Confidence) > 0 && string(raw.Confidence) != "null" {
		if conf, ok = jsonNumber(raw.Confidence); !ok {
			return Result{}, apperrors.New(apperrors.ErrMalformedResult, op, "confidence is not a number: %s", string(raw.Confidence))
		}
	}

	intent := strings.TrimSpace(raw.Intent)
	if intent == "" {
		return Result{}, apperrors.New(apperrors.ErrMalformedResult, op, "intent is missing")
	}
	rec, ok := parseRecommendation(raw.Recommendation)
	if !ok {
		return Result{}, apperrors.New(apperrors.ErrMalformedResult, op, "unknown action_recommendation %q", raw.Recommendation)
	}

	var suggested *string
	if raw.SuggestedResponse != nil && strings.TrimSpace(*raw.SuggestedResponse) != "" {
		s := strings.TrimSpace(*raw.SuggestedResponse)
		suggested = &s
	}

	return Result{
		Intent:            intent,
		Confidence:        calls.ClampSpamScore(conf),
		SpamLikelihood:    calls.ClampSpamScore(spam),
		Sentiment:         strings.TrimSpace(raw.Sentiment),
		SuggestedResponse: suggested,
		Recommendation:    rec,
	}, nil
}

func jsonNumber(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, false
	}
	// json.Number accepts quoted strings; reject them.
	if raw[0] == '"' {
		return 0, false
	}
	f, err := n.Float64()
	if err != nil {
		// Overflowing literals come back as ±Inf and are clamped by the caller.
		if errors.Is(err, strconv.ErrRange) {
			return f, true
		}
		return 0, false
	}
	return f, true
}

func parseRecommendation(s string) (Recommendation, bool) {
	norm := strings.NewReplacer("_", "", "-", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	for _, r := range recommendations {
		if strings.ToLower(string(r)) == norm {
			return r, true
		}
	}
	return "", false
}

// stripFences removes a surrounding ``` or ```json fence.
func stripFences(b []byte) []byte {
	s := strings.TrimSpace(string(b))
	if !strings.HasPrefix(s, "```") {
		return []byte(s)
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return []byte(strings.TrimSpace(s))
}
