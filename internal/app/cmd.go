package app

import (
	"fmt"
	"io"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はWebサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker は期限切れセッションを削除するワーカーモードで起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
	// CommandHelp は使い方を表示することを示す。
	CommandHelp Command = "help"
)

// commandNames は引数とサブコマンドの対応。
var commandNames = map[string]Command{
	"serve":       CommandServe,
	"worker":      CommandWorker,
	"migrate":     CommandMigrate,
	"healthcheck": CommandHealthcheck,
	"help":        CommandHelp,
	"-h":          CommandHelp,
	"--help":      CommandHelp,
}

// ParseCommand は先頭の引数からサブコマンドを決める。
// 引数が空または未知の場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	if cmd, ok := commandNames[args[0]]; ok {
		return cmd
	}
	return CommandServe
}

// PrintUsage はサブコマンドと主要な環境変数の一覧を書き出す。
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, `usage: todoapp [serve|worker|migrate|healthcheck|help]

commands:
  serve        start the web server (default)
  worker       delete expired sessions periodically (STORE_BACKEND=postgres)
  migrate      apply database migrations
  healthcheck  query /health on METRICS_PORT and exit non-zero on failure

environment:
  STORE_BACKEND             memory | postgres (default memory)
  DATABASE_URL              required for postgres, migrate and worker
  APP_USERS                 name:password[:ROLE|ROLE],... (default rvg, ric)
  SERVER_PORT, METRICS_PORT listen ports (default 8080, 9090)
  SESSION_MAX_AGE           session lifetime in seconds (default 1800)
  TODO_OWNER_CHECK          restrict edit/update/delete to the owner (default true)
  CSRF_PROTECTION           require CSRF tokens on forms (default false)
`)
}
