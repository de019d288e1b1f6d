package app

// Command はアプリケーションの起動モードを表す。
// 単一バイナリをserve/worker/migrate/healthcheckのどのモードで動かすかを
// 第一引数で切り替える。
type Command string

const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker はワーカーモードで起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

var knownCommands = map[string]Command{
	"serve":       CommandServe,
	"worker":      CommandWorker,
	"migrate":     CommandMigrate,
	"healthcheck": CommandHealthcheck,
}

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
// 第二引数以降は各モードが個別に解釈するため、ここでは無視する。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	if cmd, ok := knownCommands[args[0]]; ok {
		return cmd
	}
	return CommandServe
}
