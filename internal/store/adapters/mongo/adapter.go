// Package mongo implementa el adapter MongoDB del port de usuarios.
//
// La conexión usa TLS mutuo (CA + cert/clave de cliente) y credencial
// SCRAM-SHA-256. Un fallo de handshake es fatal en Connect: no existe
// fallback a plaintext. Los writes usan write concern majority; un
// write no confirmado se reporta como ErrUnavailable y el caller debe
// re-leer para confirmar (resultado desconocido, nunca asumido).
package mongo

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"

	"github.com/dropDatabas3/userdal/internal/domain/repository"
	"github.com/dropDatabas3/userdal/internal/observability/logger"
	"github.com/dropDatabas3/userdal/internal/store"
)

const collectionName = "users"

func init() {
	store.RegisterAdapter(&mongoAdapter{})
}

type mongoAdapter struct{}

func (a *mongoAdapter) Name() string { return "mongo" }

func (a *mongoAdapter) Connect(ctx context.Context, cfg store.Config) (store.Connection, error) {
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetAppName(cfg.AppName).
		SetWriteConcern(writeconcern.Majority())

	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}
	if cfg.ConnectTimeout > 0 {
		opts.SetConnectTimeout(cfg.ConnectTimeout)
		opts.SetServerSelectionTimeout(cfg.ConnectTimeout)
	}
	// Cota superior por operación: acquire del pool + round trip. Si el
	// pool está agotado más allá de esto, la operación falla con
	// ErrUnavailable en lugar de bloquear indefinidamente.
	if cfg.AcquireTimeout > 0 {
		opts.SetTimeout(cfg.AcquireTimeout)
	}

	if cfg.Username != "" {
		opts.SetAuth(options.Credential{
			AuthMechanism: "SCRAM-SHA-256",
			AuthSource:    cfg.Database,
			Username:      cfg.Username,
			Password:      cfg.Password,
		})
	}

	if cfg.TLS.CAFile != "" || cfg.TLS.CertKeyFile != "" {
		tlsCfg, err := buildTLSConfig(cfg.TLS)
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, classifyConnectErr(err)
	}

	// Handshake real: Connect no toca la red hasta el primer comando.
	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, classifyConnectErr(err)
	}

	logger.L().Info("mongo adapter connected",
		logger.Component("store"),
		logger.Adapter("mongo"),
		logger.String("database", cfg.Database),
	)

	return &conn{
		client: client,
		repo:   &Repo{coll: client.Database(cfg.Database).Collection(collectionName)},
	}, nil
}

// buildTLSConfig arma la configuración de TLS mutuo: CA para validar
// el cert del servidor y cert+clave del cliente en un PEM combinado.
func buildTLSConfig(cfg store.TLSConfig) (*tls.Config, error) {
	caPEM, err := os.ReadFile(cfg.CAFile)
	if err != nil {
		return nil, fmt.Errorf("mongo: read ca file: %v: %w", err, repository.ErrTLSHandshake)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("mongo: ca file %s has no valid certificates: %w", cfg.CAFile, repository.ErrTLSHandshake)
	}

	cert, err := tls.LoadX509KeyPair(cfg.CertKeyFile, cfg.CertKeyFile)
	if err != nil {
		return nil, fmt.Errorf("mongo: load client cert/key: %v: %w", err, repository.ErrTLSHandshake)
	}

	return &tls.Config{
		RootCAs:      pool,
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// classifyConnectErr distingue fallos de handshake TLS (fatales) de
// indisponibilidad transitoria. El driver no expone un tipo propio
// para errores de TLS, así que se inspecciona el mensaje.
func classifyConnectErr(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "tls:") || strings.Contains(msg, "x509:") || strings.Contains(msg, "certificate") {
		return fmt.Errorf("mongo: %v: %w", err, repository.ErrTLSHandshake)
	}
	return fmt.Errorf("mongo: %v: %w", err, repository.ErrUnavailable)
}

// conn implementa store.Connection.
type conn struct {
	client *mongo.Client
	repo   *Repo
}

func (c *conn) Name() string { return "mongo" }

func (c *conn) Ping(ctx context.Context) error {
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.client.Ping(pingCtx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongo: ping: %v: %w", err, repository.ErrUnavailable)
	}
	return nil
}

func (c *conn) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

func (c *conn) Users() repository.UserRepository { return c.repo }
