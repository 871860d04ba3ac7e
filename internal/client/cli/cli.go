// Package cli реализует командную поверхность клиента scenesync.
// Одноразовые команды (register, login, create, list) работают поверх
// движка синхронизации; watch держит живую сессию с presence.
package cli

import (
	"context"
	"fmt"

	"github.com/iudanet/scenesync/internal/client/auth"
	"github.com/iudanet/scenesync/internal/client/iocli"
	"github.com/iudanet/scenesync/internal/client/storage"
	"github.com/iudanet/scenesync/internal/client/sync"
)

// SyncFactory собирает движок синхронизации для аутентифицированной
// сессии. Вызывается лениво: команды без мутаций движка не требуют.
type SyncFactory func(session *storage.Session) (*sync.Service, error)

// syncEngine покрывает часть движка, нужную помощникам flush/refresh
type syncEngine interface {
	Run(ctx context.Context) error
	Connected() bool
	PendingCount(ctx context.Context) (int, error)
	Refresh(ctx context.Context) error
}

type Cli struct {
	io          iocli.IO
	authService *auth.Service
	syncFactory SyncFactory
	version     string
}

func New(io iocli.IO, authService *auth.Service, syncFactory SyncFactory, version string) *Cli {
	return &Cli{
		io:          io,
		authService: authService,
		syncFactory: syncFactory,
		version:     version,
	}
}

// Run выполняет команду и возвращает ошибку для кода выхода
func (c *Cli) Run(ctx context.Context, command string, args []string) error {
	switch command {
	case "register":
		return c.runRegister(ctx)
	case "login":
		return c.runLogin(ctx)
	case "logout":
		return c.runLogout(ctx)
	case "status":
		return c.runStatus(ctx)
	case "create":
		return c.runCreate(ctx, args)
	case "update":
		return c.runUpdate(ctx, args)
	case "delete":
		return c.runDelete(ctx, args)
	case "list":
		return c.runList(ctx)
	case "sync":
		return c.runSync(ctx)
	case "watch":
		return c.runWatch(ctx)
	case "version":
		c.io.Printf("scenesync client %s\n", c.version)
		return nil
	default:
		c.PrintUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

// ensureSync восстанавливает сессию и собирает движок синхронизации
func (c *Cli) ensureSync(ctx context.Context) (*sync.Service, error) {
	session, err := c.authService.Restore(ctx)
	if err != nil {
		return nil, loginHint(err)
	}

	return c.syncFactory(session)
}

// loginHint переводит ошибки сессии в подсказку пользователю
func loginHint(err error) error {
	switch {
	case err == nil:
		return nil
	case isAuthErr(err):
		return fmt.Errorf("%w. Run 'scenesync login' first", err)
	default:
		return err
	}
}

func isAuthErr(err error) bool {
	return err == auth.ErrNotAuthenticated || err == auth.ErrSessionExpired
}

func (c *Cli) PrintUsage() {
	c.io.Println("scenesync - collaborative scene sync client")
	c.io.Println()
	c.io.Println("Usage:")
	c.io.Println("  scenesync [OPTIONS] COMMAND")
	c.io.Println()
	c.io.Println("Options:")
	c.io.Println("  --version            Show version information")
	c.io.Println("  --server URL         Server URL (default: http://localhost:8080)")
	c.io.Println("  --db PATH            Path to local database (default: scenesync-client.db)")
	c.io.Println()
	c.io.Println("Commands:")
	c.io.Println("  register             Register new user")
	c.io.Println("  login                Login to server")
	c.io.Println("  logout               Logout and drop the local session")
	c.io.Println("  status               Show session and pending operations")
	c.io.Println("  create <json>        Create a record with the given payload")
	c.io.Println("  update <id> <json>   Merge partial payload into a record")
	c.io.Println("  delete <id>          Delete a record")
	c.io.Println("  list                 List records in the shared collection")
	c.io.Println("  sync                 Push queued offline operations to the server")
	c.io.Println("  watch                Follow collection and presence updates live")
	c.io.Println()
	c.io.Println("Examples:")
	c.io.Println("  scenesync register")
	c.io.Println("  scenesync create '{\"shape\":\"circle\",\"x\":10,\"y\":20}'")
	c.io.Println("  scenesync update b692f5c0-2d88-4aa1-a9e1-13aa6e4976d5 '{\"x\":42}'")
	c.io.Println("  scenesync --server https://example.com watch")
}
