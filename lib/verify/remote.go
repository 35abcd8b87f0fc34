package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/xoviat/capsynth/lib/draw"
)

// Remote posts decks to a verification service. Requests are spaced at
// least Interval apart.
type Remote struct {
	URL      string
	Interval time.Duration
	Client   *http.Client

	lock *sync.Mutex
	last time.Time
}

func NewRemote(url string, interval time.Duration) *Remote {
	return &Remote{
		URL:      strings.TrimRight(url, "/"),
		Interval: interval,
		Client:   http.DefaultClient,
		lock:     &sync.Mutex{},
	}
}

type remoteRequest struct {
	Mode string    `json:"mode"`
	Deck draw.Deck `json:"deck"`
}

type remoteResponse struct {
	Code   int    `json:"code"`
	Report string `json:"report"`
	Error  string `json:"error"`
}

func (r *Remote) Name() string {
	return "remote:" + r.URL
}

func (r *Remote) CheckRules(ctx context.Context, l Layout) (string, error) {
	return r.makeRequest(ctx, "drc", l)
}

func (r *Remote) ExtractParasitics(ctx context.Context, l Layout) (string, error) {
	return r.makeRequest(ctx, "pex", l)
}

// wait blocks until the next request slot.
func (r *Remote) wait(ctx context.Context) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	if d := time.Until(r.last.Add(r.Interval)); d > 0 {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	r.last = time.Now()
	return nil
}

func (r *Remote) makeRequest(ctx context.Context, mode string, l Layout) (string, error) {
	if err := r.wait(ctx); err != nil {
		return "", err
	}

	body, err := json.Marshal(remoteRequest{Mode: mode, Deck: l.Deck()})
	if err != nil {
		return "", errors.Wrap(err, "encode request")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.URL+"/v1/"+mode, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Add("Content-Type", "application/json")

	resp, err := r.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	response := remoteResponse{}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", errors.Wrapf(err, "decode %s response", mode)
	}
	if resp.StatusCode != http.StatusOK || response.Error != "" {
		return "", errors.Errorf("%s: status %d: %s", mode, resp.StatusCode, response.Error)
	}
	return response.Report, nil
}
