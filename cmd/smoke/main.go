package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/example/momchat/internal/realtime"
)

// 对运行中的 web / admin 服务跑一遍完整的私信流程
var (
	baseURL  = envOr("MOMCHAT_BASE_URL", "http://localhost:3000")
	adminURL = envOr("MOMCHAT_ADMIN_URL", "http://localhost:3001")
	client   = &http.Client{Timeout: 10 * time.Second}
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type account struct {
	token string
	id    string
	tag   string
}

func main() {
	fmt.Println("==========================================")
	fmt.Println("    私信流程冒烟测试")
	fmt.Println("==========================================")
	if err := run(); err != nil {
		fmt.Printf("\n失败: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("\n全部通过")
}

func run() error {
	fmt.Println("\n1. 注册两个用户...")
	a, err := register()
	if err != nil {
		return err
	}
	b, err := register()
	if err != nil {
		return err
	}
	fmt.Printf("   %s / %s\n", a.tag, b.tag)

	fmt.Println("\n2. 用户一建立 websocket 连接...")
	wsURL := "ws" + strings.TrimPrefix(baseURL, "http") + "/ws?token=" + a.token
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial websocket: %w", err)
	}
	defer conn.Close()
	events := make(chan realtime.Frame, 16)
	go func() {
		defer close(events)
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var f realtime.Frame
			if json.Unmarshal(raw, &f) == nil {
				events <- f
			}
		}
	}()
	// 等待服务端完成鉴权并加入分组
	time.Sleep(300 * time.Millisecond)

	fmt.Println("\n3. 用户一发送 hello...")
	var hello struct {
		ID       string `json:"id"`
		ThreadID string `json:"threadId"`
	}
	if err := call(http.MethodPost, baseURL+"/api/messages", a.token,
		map[string]string{"receiverTag": b.tag, "content": "hello"}, &hello); err != nil {
		return err
	}
	if err := expectEvent(events, realtime.EventNewMessage); err != nil {
		return err
	}

	fmt.Println("\n4. 用户二回复 hi back...")
	var reply struct {
		ThreadID string `json:"threadId"`
	}
	if err := call(http.MethodPost, baseURL+"/api/messages", b.token,
		map[string]string{"receiverTag": a.tag, "content": "hi back"}, &reply); err != nil {
		return err
	}
	if reply.ThreadID != hello.ThreadID {
		return fmt.Errorf("reply landed in thread %s, want %s", reply.ThreadID, hello.ThreadID)
	}
	if err := expectEvent(events, realtime.EventNewMessage); err != nil {
		return err
	}

	fmt.Println("\n5. 检查会话与消息列表...")
	var threads []struct {
		ID          string `json:"id"`
		LastMessage string `json:"lastMessage"`
	}
	if err := call(http.MethodGet, baseURL+"/api/threads", a.token, nil, &threads); err != nil {
		return err
	}
	if len(threads) != 1 || threads[0].LastMessage != "hi back" {
		return fmt.Errorf("unexpected threads: %+v", threads)
	}
	var messages []struct {
		ID string `json:"id"`
	}
	if err := call(http.MethodGet, baseURL+"/api/threads/"+hello.ThreadID+"/messages", b.token, nil, &messages); err != nil {
		return err
	}
	if len(messages) != 2 || messages[0].ID != hello.ID {
		return fmt.Errorf("unexpected messages: %+v", messages)
	}

	fmt.Println("\n6. 用户二标记已读...")
	if err := call(http.MethodPatch, baseURL+"/api/messages/"+hello.ID+"/read", b.token, nil, nil); err != nil {
		return err
	}
	if err := expectEvent(events, realtime.EventMessageRead); err != nil {
		return err
	}

	fmt.Println("\n7. 管理端统计...")
	var stats map[string]interface{}
	if err := call(http.MethodGet, adminURL+"/api/stats", "", nil, &stats); err != nil {
		fmt.Printf("   跳过: %v\n", err)
	} else {
		fmt.Printf("   %v\n", stats["messaging"])
	}
	return nil
}

func register() (*account, error) {
	email := "smoke-" + uuid.NewString()[:8] + "@example.com"
	var pair struct {
		AccessToken string `json:"accessToken"`
	}
	if err := call(http.MethodPost, baseURL+"/api/auth/register", "",
		map[string]string{"email": email, "password": "password123"}, &pair); err != nil {
		return nil, err
	}
	var me struct {
		ID           string `json:"id"`
		AnonymousTag string `json:"anonymousTag"`
	}
	if err := call(http.MethodGet, baseURL+"/api/users/me", pair.AccessToken, nil, &me); err != nil {
		return nil, err
	}
	return &account{token: pair.AccessToken, id: me.ID, tag: me.AnonymousTag}, nil
}

func expectEvent(events <-chan realtime.Frame, name string) error {
	timeout := time.After(3 * time.Second)
	for {
		select {
		case f, ok := <-events:
			if !ok {
				return fmt.Errorf("websocket closed while waiting for %s", name)
			}
			if f.Event == name {
				fmt.Printf("   收到事件 %s\n", name)
				return nil
			}
		case <-timeout:
			return fmt.Errorf("no %s event within 3s", name)
		}
	}
}

func call(method, url, token string, body, out interface{}) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%s %s: decode: %w", method, url, err)
	}
	if resp.StatusCode >= 300 || env.Code != 0 {
		return fmt.Errorf("%s %s: %d %s", method, url, resp.StatusCode, env.Msg)
	}
	if out != nil && len(env.Data) > 0 {
		return json.Unmarshal(env.Data, out)
	}
	return nil
}
