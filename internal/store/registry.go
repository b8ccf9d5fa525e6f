// Package store provee el registry de adapters de persistencia.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dropDatabas3/userdal/internal/domain/repository"
)

// Adapter representa un backend de persistencia capaz de abrir
// conexiones. Los adapters se registran en init() y se seleccionan una
// sola vez al arranque del proceso, nunca por llamada.
type Adapter interface {
	// Name retorna el nombre del adapter (ej: "mongo", "memory").
	Name() string

	// Connect establece la conexión con el almacenamiento. Los fallos
	// de TLS mutuo son fatales acá (repository.ErrTLSHandshake): no
	// existe fallback degradado.
	Connect(ctx context.Context, cfg Config) (Connection, error)
}

// Connection representa una conexión activa a un backend.
type Connection interface {
	// Name retorna el nombre del adapter.
	Name() string

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close cierra la conexión y libera el pool.
	Close(ctx context.Context) error

	// Users retorna el repositorio de usuarios.
	Users() repository.UserRepository
}

// TLSConfig archivos para TLS mutuo contra el store.
type TLSConfig struct {
	// CAFile certificado de la CA que firma el cert del servidor.
	CAFile string

	// CertKeyFile PEM combinado con certificado + clave del cliente.
	CertKeyFile string
}

// Config configuración para conectar a un almacenamiento.
type Config struct {
	// Name del adapter: "mongo" | "memory"
	Name string

	// URI connection string (mongo)
	URI string

	// Database nombre de la base (mongo)
	Database string

	// Credenciales SCRAM (mongo; opcional)
	Username string
	Password string

	// TLS mutuo (mongo; opcional en dev)
	TLS TLSConfig

	// MaxPoolSize tamaño del pool de conexiones. 0 = default del driver.
	MaxPoolSize uint64

	// AcquireTimeout máximo de espera por un slot del pool antes de
	// fallar con ErrUnavailable.
	AcquireTimeout time.Duration

	// ConnectTimeout máximo para el handshake inicial.
	ConnectTimeout time.Duration

	// AppName identificador del cliente ante el store.
	AppName string
}

// ─── Registry Global ───

var (
	registryMu sync.RWMutex
	adapters   = make(map[string]Adapter)
)

// RegisterAdapter registra un adapter en el registry global.
// Llamar en init() de cada adapter.
func RegisterAdapter(a Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name := a.Name()
	if _, exists := adapters[name]; exists {
		panic(fmt.Sprintf("store: adapter %q already registered", name))
	}
	adapters[name] = a
}

// GetAdapter obtiene un adapter por nombre.
func GetAdapter(name string) (Adapter, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	a, ok := adapters[name]
	return a, ok
}

// ListAdapters retorna los nombres de todos los adapters registrados.
func ListAdapters() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(adapters))
	for name := range adapters {
		names = append(names, name)
	}
	return names
}

// Open conecta usando el adapter nombrado en cfg.Name.
func Open(ctx context.Context, cfg Config) (Connection, error) {
	a, ok := GetAdapter(cfg.Name)
	if !ok {
		return nil, fmt.Errorf("store: unknown adapter %q (registered: %v)", cfg.Name, ListAdapters())
	}
	conn, err := a.Connect(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: connect %s: %w", cfg.Name, err)
	}
	return conn, nil
}
