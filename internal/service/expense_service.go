package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"gastos-cloud/internal/domain"
	"gastos-cloud/internal/remote"
	"gastos-cloud/internal/watch"
)

// ErrInvalidExpense marca un gasto con título vacío o demasiado largo.
var ErrInvalidExpense = errors.New("invalid expense")

const maxTitleLength = 180

// ExpenseService es el dueño del cache de gastos de la sesión: un espejo
// optimista del store remoto. Cada mutación exitosa reemplaza o ajusta el
// cache y re-publica el snapshot completo; ningún fallo remoto toca el cache.
//
// Mutaciones lanzadas en paralelo no tienen orden garantizado entre sí: el
// cache refleja cada mutación completada en su orden de finalización y la
// última re-publicación es la que ven los observadores.
type ExpenseService struct {
	logger  *zap.Logger
	session *SessionService
	records remote.RecordClient
	blobs   remote.BlobClient
	feed    *watch.Feed[[]domain.Expense]

	mu    sync.Mutex
	cache []domain.Expense
}

// NewExpenseService crea el servicio de gastos sobre la sesión dada.
func NewExpenseService(logger *zap.Logger, session *SessionService, records remote.RecordClient, blobs remote.BlobClient) *ExpenseService {
	s := &ExpenseService{
		logger:  logger,
		session: session,
		records: records,
		blobs:   blobs,
		feed:    watch.NewFeed[[]domain.Expense](),
	}
	s.feed.Publish([]domain.Expense{})
	return s
}

// Expenses expone el stream del snapshot del cache.
func (s *ExpenseService) Expenses() *watch.Feed[[]domain.Expense] {
	return s.feed
}

// Snapshot devuelve una copia del cache vigente.
func (s *ExpenseService) Snapshot() []domain.Expense {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Expense(nil), s.cache...)
}

// Total suma el valor de los gastos del cache vigente.
func (s *ExpenseService) Total() float64 {
	return domain.Total(s.Snapshot())
}

// FetchAll reemplaza el cache entero con los gastos del usuario autenticado.
// Cero resultados deja un cache vacío, no es un error.
func (s *ExpenseService) FetchAll(ctx context.Context) ([]domain.Expense, error) {
	cred, err := s.claim()
	if err != nil {
		return nil, err
	}

	expenses, err := s.records.List(ctx, cred.UserID, cred.Token)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache = append([]domain.Expense(nil), expenses...)
	snapshot := append([]domain.Expense(nil), s.cache...)
	s.mu.Unlock()

	s.feed.Publish(snapshot)
	return snapshot, nil
}

// FetchOne lee un gasto puntual del store remoto sin tocar el cache.
func (s *ExpenseService) FetchOne(ctx context.Context, id string) (domain.Expense, error) {
	cred, err := s.claim()
	if err != nil {
		return domain.Expense{}, err
	}
	return s.records.Get(ctx, id, cred.Token)
}

// Add crea el gasto en el store remoto con un id provisorio local, adopta el
// id asignado por el servidor y lo agrega al cache. No fuerza un FetchAll
// previo: agrega sobre el cache local tal como esté.
func (s *ExpenseService) Add(ctx context.Context, title string, value float64, dtg time.Time, imageURL string) (domain.Expense, error) {
	cred, err := s.claim()
	if err != nil {
		return domain.Expense{}, err
	}
	title, err = validTitle(title)
	if err != nil {
		return domain.Expense{}, err
	}

	expense := domain.Expense{
		ID:       uuid.NewString(),
		Title:    title,
		UserID:   cred.UserID,
		Value:    value,
		ImageURL: imageURL,
		Dtg:      dtg,
	}

	assignedID, err := s.records.Create(ctx, expense, cred.Token)
	if err != nil {
		return domain.Expense{}, err
	}
	expense.ID = assignedID

	s.mu.Lock()
	s.cache = append(s.cache, expense)
	snapshot := append([]domain.Expense(nil), s.cache...)
	s.mu.Unlock()

	s.feed.Publish(snapshot)
	return expense, nil
}

// Update reemplaza título, valor y fecha de un gasto, preservando dueño e
// imagen del registro existente. Con el cache vacío primero hace un FetchAll
// para tener una base conocida; si el id no aparece ni después de eso,
// devuelve not found.
func (s *ExpenseService) Update(ctx context.Context, id, title string, value float64, dtg time.Time) (domain.Expense, error) {
	cred, err := s.claim()
	if err != nil {
		return domain.Expense{}, err
	}
	title, err = validTitle(title)
	if err != nil {
		return domain.Expense{}, err
	}

	s.mu.Lock()
	empty := len(s.cache) == 0
	s.mu.Unlock()
	if empty {
		if _, err := s.FetchAll(ctx); err != nil {
			return domain.Expense{}, err
		}
	}

	s.mu.Lock()
	existing, found := findByID(s.cache, id)
	s.mu.Unlock()
	if !found {
		return domain.Expense{}, remote.ErrNotFound
	}

	updated := existing
	updated.Title = title
	updated.Value = value
	updated.Dtg = dtg

	if err := s.records.Replace(ctx, id, updated, cred.Token); err != nil {
		return domain.Expense{}, err
	}

	s.mu.Lock()
	for i := range s.cache {
		if s.cache[i].ID == id {
			s.cache[i] = updated
			break
		}
	}
	snapshot := append([]domain.Expense(nil), s.cache...)
	s.mu.Unlock()

	s.feed.Publish(snapshot)
	return updated, nil
}

// Delete borra el gasto remoto y lo saca del cache si estaba. Un id ausente
// del cache sigue siendo éxito: el delete remoto se dispara igual.
func (s *ExpenseService) Delete(ctx context.Context, id string) error {
	cred, err := s.claim()
	if err != nil {
		return err
	}

	if err := s.records.Delete(ctx, id, cred.Token); err != nil {
		return err
	}

	s.mu.Lock()
	kept := s.cache[:0]
	for _, e := range s.cache {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	s.cache = kept
	snapshot := append([]domain.Expense(nil), s.cache...)
	s.mu.Unlock()

	s.feed.Publish(snapshot)
	return nil
}

// StoreImage sube el recibo al object store y devuelve su URL.
// No interactúa con el cache.
func (s *ExpenseService) StoreImage(ctx context.Context, filename string, content io.Reader) (remote.UploadResult, error) {
	cred, err := s.claim()
	if err != nil {
		return remote.UploadResult{}, err
	}
	return s.blobs.Upload(ctx, filename, content, cred.Token)
}

// claim resuelve la credencial viva antes de tocar la red.
func (s *ExpenseService) claim() (domain.Credential, error) {
	cred, ok := s.session.Credential()
	if !ok {
		return domain.Credential{}, ErrNoSession
	}
	return cred, nil
}

func validTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" || len(title) > maxTitleLength {
		return "", ErrInvalidExpense
	}
	return title, nil
}

func findByID(expenses []domain.Expense, id string) (domain.Expense, bool) {
	for _, e := range expenses {
		if e.ID == id {
			return e, true
		}
	}
	return domain.Expense{}, false
}
