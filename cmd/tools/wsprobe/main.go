package main

import (
	"encoding/base64"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/fatih/color"
	"github.com/gorilla/websocket"
	"github.com/tidwall/sjson"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	url := flag.String("url", "ws://localhost:8101/ws", "WebSocket 地址")
	text := flag.String("text", "", "发送的文本查询")
	audioPath := flag.String("audio", "", "发送的音频文件路径 (wav)")
	ping := flag.Bool("ping", false, "连接后发送 ping")
	wait := flag.Duration("wait", 30*time.Second, "等待服务端消息的时长")
	flag.Parse()

	conn, _, err := websocket.DefaultDialer.Dial(*url, nil)
	if err != nil {
		log.Fatalf("连接失败: %v", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Printf("读取结束: %v", err)
				}
				return
			}
			fmt.Println(formatFrame(data))
		}
	}()

	if *ping {
		send(conn, "ping", "")
	}
	if *text != "" {
		send(conn, "text", *text)
	}
	if *audioPath != "" {
		audio, err := os.ReadFile(*audioPath)
		if err != nil {
			log.Fatalf("读取音频失败: %v", err)
		}
		send(conn, "audio", base64.StdEncoding.EncodeToString(audio))
		log.Printf("已发送音频 %s (%d bytes)", *audioPath, len(audio))
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	select {
	case <-done:
	case <-interrupt:
	case <-time.After(*wait):
		color.New(color.Faint).Println("等待结束")
	}

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func send(conn *websocket.Conn, kind, content string) {
	frame, _ := sjson.Set(`{}`, "type", kind)
	if content != "" {
		frame, _ = sjson.Set(frame, "content", content)
	}
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		log.Fatalf("发送 %s 失败: %v", kind, err)
	}
}
