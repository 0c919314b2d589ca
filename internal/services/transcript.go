package services

import (
	"bytes"
	"context"
	"fmt"

	"github.com/go-pdf/fpdf"
	"github.com/sirupsen/logrus"

	"pixeloria/internal/models"
)

// TranscriptService 把会话记录渲染为 PDF 字节流，供下载或邮件附件
type TranscriptService struct {
	chats  *ChatService
	logger *logrus.Logger
}

// NewTranscriptService 创建导出服务
func NewTranscriptService(chats *ChatService, logger *logrus.Logger) *TranscriptService {
	if logger == nil {
		logger = logrus.New()
	}
	return &TranscriptService{chats: chats, logger: logger}
}

// ExportPDF 导出指定会话的完整聊天记录
func (t *TranscriptService) ExportPDF(ctx context.Context, sessionID string) ([]byte, error) {
	session, err := t.chats.GetHistory(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return renderTranscript(session)
}

func renderTranscript(session *models.ChatSession) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Pixeloria Chat Transcript", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, "Pixeloria Chat Transcript")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Session: %s", session.SessionID))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Visitor: %s <%s> (%s)", session.UserName, session.UserEmail, session.UserCountry))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Type: %s    Status: %s", session.ChatType, session.Status))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Started: %s", session.CreatedAt.Format("2006-01-02 15:04:05")))
	pdf.Ln(10)

	for _, msg := range session.Messages {
		pdf.SetFont("Helvetica", "B", 10)
		header := fmt.Sprintf("[%s] %s", msg.CreatedAt.Format("15:04:05"), msg.Sender)
		if msg.AIModel != "" {
			header += fmt.Sprintf(" (%s)", msg.AIModel)
		}
		pdf.Cell(0, 6, header)
		pdf.Ln(6)

		pdf.SetFont("Helvetica", "", 10)
		pdf.MultiCell(0, 5, msg.Content, "", "L", false)
		pdf.Ln(3)
	}

	if session.Status == models.StatusTerminated {
		pdf.SetFont("Helvetica", "I", 9)
		pdf.Cell(0, 6, fmt.Sprintf("Terminated by %s. Reason: %s", session.TerminatedBy, session.TerminationReason))
		pdf.Ln(6)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render transcript: %w", err)
	}
	return buf.Bytes(), nil
}
