package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPNotifier envia textos do passthrough de danmaku para um endpoint
// externo via POST JSON.
type HTTPNotifier struct {
	URL  string
	HTTP *http.Client
}

// New monta o notifier; URL vazia desliga o repasse.
func New(url string) *HTTPNotifier {
	return &HTTPNotifier{
		URL:  url,
		HTTP: &http.Client{Timeout: 5 * time.Second},
	}
}

// Notify publica o texto no endpoint configurado.
func (n *HTTPNotifier) Notify(ctx context.Context, text string) error {
	if n.URL == "" {
		return nil
	}
	body, _ := json.Marshal(map[string]string{"message": text})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := n.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		return fmt.Errorf("notify http %d", res.StatusCode)
	}
	return nil
}
