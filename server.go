package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/go-dap"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/fansqz/pdb-debugger/config"
	"github.com/fansqz/pdb-debugger/debugger"
	"github.com/fansqz/pdb-debugger/debugger/pdb_debugger"
	"github.com/fansqz/pdb-debugger/utils"
	"github.com/fansqz/pdb-debugger/utils/gosync"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the debug adapter protocol over TCP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func init() {
	serveCmd.Flags().String("port", "", "TCP port to listen on")
	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
}

// sessionDebugger 一个连接独占的调试器
type sessionDebugger interface {
	debugger.Debugger
	Close() error
}

// serve 监听端口，每个连接创建一个调试器
func serve(ctx context.Context, cfg *config.Config) error {
	listener, err := net.Listen("tcp", ":"+cfg.Server.Port)
	if err != nil {
		return err
	}
	logrus.Infof("[Server] started listening at: %s", listener.Addr().String())
	gosync.Go(ctx, func(ctx context.Context) {
		<-ctx.Done()
		_ = listener.Close()
	})

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			logrus.Errorf("[Server] connection failed: %v", err)
			continue
		}
		d, err := pdb_debugger.NewPdbDebugger(cfg)
		if err != nil {
			logrus.Errorf("[Server] create debugger fail, err = %v", err)
			_ = conn.Close()
			continue
		}
		gosync.Go(ctx, func(ctx context.Context) {
			handleConnection(ctx, conn, d, cfg)
		})
	}
}

// handleConnection handles a connection from a single client.
// It reads and decodes the incoming requests and dispatches them in order.
// Responses and events are written by the sender goroutine.
func handleConnection(ctx context.Context, conn net.Conn, d sessionDebugger, cfg *config.Config) {
	logrus.Infof("[Server] accept connection from %s", conn.RemoteAddr())
	session := newDebugSession(conn, d)
	gosync.Go(ctx, session.sendFromQueue)

	watchdog := utils.NewIdleWatchdog(cfg.Server.IdleTimeout, func() {
		logrus.Infof("[Server] closing idle connection from %s", conn.RemoteAddr())
		_ = conn.Close()
	})
	watchdog.Start(ctx)

	for {
		err := session.handleRequest(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				logrus.Infof("[Server] no more data to read: %v", err)
			} else {
				logrus.Errorf("[Server] server error: %v", err)
			}
			break
		}
		watchdog.Touch()
	}

	logrus.Infof("[Server] closing connection from %s", conn.RemoteAddr())
	watchdog.Stop()
	if err := d.Close(); err != nil {
		logrus.Warnf("[Server] close debugger: %v", err)
	}
	session.close()
	_ = conn.Close()
}

// DebugSession 调试会话
type DebugSession struct {
	conn net.Conn
	// rw is used to read requests and write events/responses
	rw *bufio.ReadWriter

	debugger sessionDebugger
	// sendQueue collects messages from the request handlers and the debugger
	// callback. sendFromQueue is the only writer of the connection.
	sendQueue chan dap.Message
	done      chan struct{}
	sent      chan struct{}

	// launch 参数，在configurationDone时启动调试
	launch *launchArguments
	// handles 变量引用，每次请求scopes时重新分配
	handles *variableHandles
	// pendingStop 收到停止事件后，等调用栈更新再通知客户端
	pendingStop *debugger.StoppedEvent
}

func newDebugSession(conn net.Conn, d sessionDebugger) *DebugSession {
	return &DebugSession{
		conn:      conn,
		rw:        bufio.NewReadWriter(bufio.NewReader(conn), bufio.NewWriter(conn)),
		debugger:  d,
		sendQueue: make(chan dap.Message),
		done:      make(chan struct{}),
		sent:      make(chan struct{}),
		handles:   newVariableHandles(),
	}
}

func (d *DebugSession) handleRequest(ctx context.Context) error {
	request, err := dap.ReadProtocolMessage(d.rw.Reader)
	if err != nil {
		return err
	}
	d.dispatchRequest(ctx, request)
	return nil
}

// send Message响应给客户端，会话关闭后丢弃
func (d *DebugSession) send(message dap.Message) {
	select {
	case d.sendQueue <- message:
	case <-d.done:
	}
}

func (d *DebugSession) sendFromQueue(ctx context.Context) {
	defer close(d.sent)
	for {
		select {
		case message := <-d.sendQueue:
			if err := dap.WriteProtocolMessage(d.rw.Writer, message); err != nil {
				logrus.Warnf("[Server] write message fail, err = %v", err)
				continue
			}
			_ = d.rw.Flush()
		case <-d.done:
			return
		}
	}
}

func (d *DebugSession) close() {
	close(d.done)
	<-d.sent
}
