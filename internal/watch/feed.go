package watch

import "sync"

// Feed publica el último valor conocido a múltiples suscriptores.
// Un suscriptor nuevo recibe de inmediato el valor vigente (si existe) y
// después cada publicación. Un suscriptor lento pierde valores intermedios
// en lugar de bloquear al publicador.
type Feed[T any] struct {
	mu      sync.Mutex
	subs    map[int]chan T
	nextID  int
	current T
	primed  bool
}

// NewFeed crea un feed sin valor inicial.
func NewFeed[T any]() *Feed[T] {
	return &Feed[T]{subs: make(map[int]chan T)}
}

// Publish reemplaza el valor vigente y lo reparte a todos los suscriptores.
func (f *Feed[T]) Publish(value T) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = value
	f.primed = true
	for _, ch := range f.subs {
		f.offer(ch, value)
	}
}

// Subscribe registra un suscriptor y devuelve su canal junto con la función
// para darse de baja. Cancelar dos veces es seguro.
func (f *Feed[T]) Subscribe() (<-chan T, func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	id := f.nextID
	f.nextID++
	ch := make(chan T, 1)
	f.subs[id] = ch
	if f.primed {
		f.offer(ch, f.current)
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if sub, ok := f.subs[id]; ok {
				delete(f.subs, id)
				close(sub)
			}
		})
	}
	return ch, cancel
}

// Current devuelve el último valor publicado y si ya hubo alguno.
func (f *Feed[T]) Current() (T, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current, f.primed
}

// offer escribe sin bloquear: descarta el valor viejo si el buffer está lleno.
func (f *Feed[T]) offer(ch chan T, value T) {
	for {
		select {
		case ch <- value:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
