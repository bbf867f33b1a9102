package outbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// errSubjectNotFound is returned by latestID when the registry has no version for a subject.
var errSubjectNotFound = errors.New("schema subject not found")

const registryContentType = "application/vnd.schemaregistry.v1+json"

// SchemaRegistryClient resolves JSON schema ids against a Confluent-compatible registry.
// Resolved ids are cached per subject for the life of the client.
type SchemaRegistryClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger

	mu  sync.Mutex
	ids map[string]int
}

// NewSchemaRegistryClient constructs a client whose requests time out after timeout.
func NewSchemaRegistryClient(baseURL string, timeout time.Duration, logger *zap.Logger) *SchemaRegistryClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemaRegistryClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		ids:        make(map[string]int),
	}
}

// EnsureSchema returns the id of the subject's latest version, registering schema when the subject is new.
func (c *SchemaRegistryClient) EnsureSchema(ctx context.Context, subject, schema string) (int, error) {
	c.mu.Lock()
	id, ok := c.ids[subject]
	c.mu.Unlock()
	if ok {
		return id, nil
	}

	id, err := c.latestID(ctx, subject)
	if errors.Is(err, errSubjectNotFound) {
		id, err = c.register(ctx, subject, schema)
		if err == nil {
			c.logger.Info("registered schema", zap.String("subject", subject), zap.Int("schema_id", id))
		}
	}
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.ids[subject] = id
	c.mu.Unlock()
	return id, nil
}

func (c *SchemaRegistryClient) latestID(ctx context.Context, subject string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.subjectURL(subject, "versions", "latest"), nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", registryContentType)
	return c.doForID(req, subject)
}

func (c *SchemaRegistryClient) register(ctx context.Context, subject, schema string) (int, error) {
	body, err := json.Marshal(struct {
		SchemaType string `json:"schemaType"`
		Schema     string `json:"schema"`
	}{SchemaType: "JSON", Schema: schema})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.subjectURL(subject, "versions"), bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", registryContentType)
	return c.doForID(req, subject)
}

func (c *SchemaRegistryClient) doForID(req *http.Request, subject string) (int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("schema registry %s %s: %w", req.Method, subject, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound && req.Method == http.MethodGet {
		return 0, errSubjectNotFound
	}
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("schema registry rejected request",
			zap.String("method", req.Method),
			zap.String("subject", subject),
			zap.Int("status", resp.StatusCode),
		)
		return 0, fmt.Errorf("schema registry %s %s: status %d: %s", req.Method, subject, resp.StatusCode, bytes.TrimSpace(detail))
	}

	var payload struct {
		ID int `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("decode schema registry response: %w", err)
	}
	return payload.ID, nil
}

func (c *SchemaRegistryClient) subjectURL(subject string, parts ...string) string {
	return c.baseURL + "/subjects/" + url.PathEscape(subject) + "/" + strings.Join(parts, "/")
}
