package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"gastos-cloud/internal/domain"
)

// ErrNotFound indica que el registro pedido no existe en el store remoto.
var ErrNotFound = errors.New("record not found")

// RecordClient define el contrato contra el document store remoto.
// Toda operación viaja autenticada con el token vigente.
type RecordClient interface {
	List(ctx context.Context, ownerID, token string) ([]domain.Expense, error)
	Get(ctx context.Context, id, token string) (domain.Expense, error)
	Create(ctx context.Context, expense domain.Expense, token string) (string, error)
	Replace(ctx context.Context, id string, expense domain.Expense, token string) error
	Delete(ctx context.Context, id, token string) error
}

// expenseData es el registro en el formato del store, siempre sin id:
// el id vive en la clave del documento y lo asigna el servidor.
type expenseData struct {
	Title    string    `json:"title"`
	UserID   string    `json:"userId"`
	Value    float64   `json:"value"`
	ImageURL string    `json:"imageUrl"`
	Dtg      time.Time `json:"dtg"`
}

// HTTPRecordClient implementa RecordClient contra la API REST del store.
type HTTPRecordClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPRecordClient construye el cliente apuntando a la base de datos remota.
func NewHTTPRecordClient(baseURL string, logger *zap.Logger) *HTTPRecordClient {
	return &HTTPRecordClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

func (c *HTTPRecordClient) List(ctx context.Context, ownerID, token string) ([]domain.Expense, error) {
	// orderBy/equalTo filtran por dueño del lado del servidor.
	listURL := fmt.Sprintf("%s/expenses.json?orderBy=%s&equalTo=%s&auth=%s",
		c.baseURL,
		url.QueryEscape(`"userId"`),
		url.QueryEscape(`"`+ownerID+`"`),
		url.QueryEscape(token),
	)

	body, err := c.do(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, err
	}

	items := make(map[string]expenseData)
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("unmarshal list response: %w", err)
	}

	expenses := make([]domain.Expense, 0, len(items))
	for id, data := range items {
		expenses = append(expenses, fromData(id, data))
	}
	sort.Slice(expenses, func(i, j int) bool {
		if expenses[i].Dtg.Equal(expenses[j].Dtg) {
			return expenses[i].ID < expenses[j].ID
		}
		return expenses[i].Dtg.Before(expenses[j].Dtg)
	})
	return expenses, nil
}

func (c *HTTPRecordClient) Get(ctx context.Context, id, token string) (domain.Expense, error) {
	body, err := c.do(ctx, http.MethodGet, c.recordURL(id, token), nil)
	if err != nil {
		return domain.Expense{}, err
	}

	// El store responde el literal null cuando el documento no existe.
	var data *expenseData
	if err := json.Unmarshal(body, &data); err != nil {
		return domain.Expense{}, fmt.Errorf("unmarshal record: %w", err)
	}
	if data == nil {
		return domain.Expense{}, ErrNotFound
	}
	return fromData(id, *data), nil
}

func (c *HTTPRecordClient) Create(ctx context.Context, expense domain.Expense, token string) (string, error) {
	createURL := fmt.Sprintf("%s/expenses.json?auth=%s", c.baseURL, url.QueryEscape(token))
	body, err := c.do(ctx, http.MethodPost, createURL, toData(expense))
	if err != nil {
		return "", err
	}

	var created struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return "", fmt.Errorf("unmarshal create response: %w", err)
	}
	if created.Name == "" {
		return "", errors.New("record store did not assign an id")
	}
	return created.Name, nil
}

func (c *HTTPRecordClient) Replace(ctx context.Context, id string, expense domain.Expense, token string) error {
	_, err := c.do(ctx, http.MethodPut, c.recordURL(id, token), toData(expense))
	return err
}

func (c *HTTPRecordClient) Delete(ctx context.Context, id, token string) error {
	_, err := c.do(ctx, http.MethodDelete, c.recordURL(id, token), nil)
	return err
}

func (c *HTTPRecordClient) recordURL(id, token string) string {
	return fmt.Sprintf("%s/expenses/%s.json?auth=%s", c.baseURL, url.PathEscape(id), url.QueryEscape(token))
}

func (c *HTTPRecordClient) do(ctx context.Context, method, requestURL string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode >= 400 {
		if c.logger != nil {
			c.logger.Warn("record store request failed",
				zap.String("method", method),
				zap.Int("status", resp.StatusCode),
			)
		}
		return nil, fmt.Errorf("record store http error: status=%d", resp.StatusCode)
	}
	return respBody, nil
}

func fromData(id string, data expenseData) domain.Expense {
	return domain.Expense{
		ID:       id,
		Title:    data.Title,
		UserID:   data.UserID,
		Value:    data.Value,
		ImageURL: data.ImageURL,
		Dtg:      data.Dtg,
	}
}

func toData(expense domain.Expense) expenseData {
	return expenseData{
		Title:    expense.Title,
		UserID:   expense.UserID,
		Value:    expense.Value,
		ImageURL: expense.ImageURL,
		Dtg:      expense.Dtg,
	}
}
