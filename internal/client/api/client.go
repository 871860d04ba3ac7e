package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/iudanet/scenesync/pkg/api"
)

//go:generate moq -out client_mock.go . RecordStore

// RecordStore определяет контракт авторитетного стора записей.
// Каждая из трех мутаций — атомарный compare-and-swap на сервере:
// клиент никогда не предполагает, что read-then-write безопасен,
// потому что на том же id могут гоняться другие клиенты.
type RecordStore interface {
	// Create succeeds only if no record exists at the id (ErrRecordExists otherwise)
	Create(ctx context.Context, record api.Record) (*api.Record, error)

	// Update merges partial over the stored record if writeTimestamp is not stale
	// Fails with ErrRecordGone or ErrStaleWrite
	Update(ctx context.Context, id string, partial map[string]any, writeTimestamp int64) (*api.Record, error)

	// Delete removes the record; ErrRecordGone if already absent
	Delete(ctx context.Context, id string) error

	// FetchSnapshot reads the full collection at a point in time
	FetchSnapshot(ctx context.Context) (*api.SnapshotResponse, error)
}

// Client представляет HTTP клиент авторитетного стора
type Client struct {
	httpClient *http.Client
	baseURL    string

	mu    sync.RWMutex
	token string
}

// NewClient создает новый API клиент
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetToken устанавливает access token для последующих запросов
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token возвращает текущий access token
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Register регистрирует нового пользователя
func (c *Client) Register(ctx context.Context, req api.RegisterRequest) (*api.RegisterResponse, error) {
	var resp api.RegisterResponse
	err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/register", req, &resp)
	if err != nil {
		return nil, fmt.Errorf("register request failed: %w", err)
	}
	return &resp, nil
}

// Login выполняет аутентификацию пользователя
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	err := c.doRequest(ctx, http.MethodPost, "/api/v1/auth/login", req, &resp)
	if err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	return &resp, nil
}

// Create создает запись, если id еще не занят
func (c *Client) Create(ctx context.Context, record api.Record) (*api.Record, error) {
	var resp api.TxnResponse
	req := api.CreateRecordRequest{Record: record}
	err := c.withRetry(ctx, func(ctx context.Context) error {
		return c.doRequest(ctx, http.MethodPost, "/api/v1/records", req, &resp)
	})
	if err != nil {
		return nil, err
	}
	return resp.Record, nil
}

// Update накладывает partial поверх сохраненной записи.
// Сервер отклонит запись с ErrRecordGone, если записи нет,
// и с ErrStaleWrite, если writeTimestamp меньше сохраненного.
func (c *Client) Update(ctx context.Context, id string, partial map[string]any, writeTimestamp int64) (*api.Record, error) {
	var resp api.TxnResponse
	req := api.UpdateRecordRequest{Partial: partial, WriteTimestamp: writeTimestamp}
	path := "/api/v1/records/" + url.PathEscape(id)
	err := c.withRetry(ctx, func(ctx context.Context) error {
		return c.doRequest(ctx, http.MethodPatch, path, req, &resp)
	})
	if err != nil {
		return nil, err
	}
	return resp.Record, nil
}

// Delete удаляет запись. ErrRecordGone если запись уже отсутствует.
func (c *Client) Delete(ctx context.Context, id string) error {
	path := "/api/v1/records/" + url.PathEscape(id)
	return c.withRetry(ctx, func(ctx context.Context) error {
		return c.doRequest(ctx, http.MethodDelete, path, nil, nil)
	})
}

// FetchSnapshot делает разовое чтение полного состояния коллекции.
// Используется после восстановления соединения: доставка push во время
// переподключения не гарантирована без пропусков.
func (c *Client) FetchSnapshot(ctx context.Context) (*api.SnapshotResponse, error) {
	var resp api.SnapshotResponse
	err := c.withRetry(ctx, func(ctx context.Context) error {
		return c.doRequest(ctx, http.MethodGet, "/api/v1/records", nil, &resp)
	})
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// withRetry повторяет операцию с экспоненциальным backoff.
// Повторяются только транзиентные (ErrNetwork) ошибки; конфликтные
// исходы CAS и ошибки аутентификации возвращаются сразу.
func (c *Client) withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(3, retry.NewExponential(100*time.Millisecond))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := op(ctx)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrNetwork) {
			return retry.RetryableError(err)
		}
		return err
	})
}

// doRequest выполняет HTTP запрос и мапит ответ на sentinel ошибки
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	reqURL := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Транспортная ошибка — транзиентная
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response body: %v", ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
			return errorFromCode(errResp.Error, errResp.Message)
		}
		if resp.StatusCode == http.StatusUnauthorized {
			return ErrUnauthenticated
		}
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: server returned %d", ErrNetwork, resp.StatusCode)
		}
		return fmt.Errorf("%w: status %d: %s", ErrTransactionFailed, resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
