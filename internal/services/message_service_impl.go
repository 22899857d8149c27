package services

import (
	"context"
	"errors"
	"time"

	"storechat-gin/internal/ai"
	"storechat-gin/internal/channel"
	apperrors "storechat-gin/internal/errors"
	"storechat-gin/internal/models"
	"storechat-gin/internal/realtime"
	"storechat-gin/internal/repositories"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ===========================================================================
// Message Service Implementation
// Xử lý toàn bộ luồng nhận và trả lời tin nhắn
// ===========================================================================

// messageService triển khai MessageService
type messageService struct {
	customerRepo     repositories.CustomerRepository
	conversationRepo repositories.ConversationRepository
	messageRepo      repositories.MessageRepository
	knowledgeRepo    repositories.KnowledgeRepository
	channelRegistry  *channel.Registry
	promptBuilder    *ai.PromptBuilder
	responder        ai.Responder
	publisher        realtime.Publisher
	logger           *zap.Logger

	// replyTimeout thời gian chờ AI tối đa trước khi trả fallback
	replyTimeout time.Duration

	// fallbackMessage câu trả lời thay thế khi AI unavailable/timeout
	fallbackMessage string
}

// NewMessageService tạo instance mới của MessageService
func NewMessageService(
	customerRepo repositories.CustomerRepository,
	conversationRepo repositories.ConversationRepository,
	messageRepo repositories.MessageRepository,
	knowledgeRepo repositories.KnowledgeRepository,
	channelRegistry *channel.Registry,
	promptBuilder *ai.PromptBuilder,
	responder ai.Responder,
	publisher realtime.Publisher,
	replyTimeout time.Duration,
	fallbackMessage string,
	logger *zap.Logger,
) MessageService {
	return &messageService{
		customerRepo:     customerRepo,
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		knowledgeRepo:    knowledgeRepo,
		channelRegistry:  channelRegistry,
		promptBuilder:    promptBuilder,
		responder:        responder,
		publisher:        publisher,
		replyTimeout:     replyTimeout,
		fallbackMessage:  fallbackMessage,
		logger:           logger,
	}
}

// ProcessInbound xử lý inbound event
func (s *messageService) ProcessInbound(ctx context.Context, store *models.Store, inbound *channel.InboundEvent) (*ProcessResult, error) {
	result := &ProcessResult{}

	// 1. Tìm hoặc tạo Customer
	customer, customerCreated, err := s.resolveCustomer(ctx, store, inbound)
	if err != nil {
		return nil, err
	}
	result.CustomerID = customer.ID
	result.CustomerCreated = customerCreated

	// 2. Tìm hoặc tạo Conversation OPEN
	conversation, conversationCreated, err := s.conversationRepo.FindOrCreateOpen(ctx, store.ID, customer.ID)
	if err != nil {
		return nil, err
	}
	result.ConversationID = conversation.ID
	result.ConversationCreated = conversationCreated

	// 3. Lưu USER message
	userMsg := &models.Message{
		ConversationID: conversation.ID,
		Role:           models.RoleUser,
		Content:        inbound.Content,
	}
	if inbound.ChannelMessageID != "" {
		userMsg.ChannelMessageID = &inbound.ChannelMessageID
	}
	if err := s.messageRepo.Create(ctx, userMsg); err != nil {
		return nil, err
	}
	result.UserMessageID = userMsg.ID

	// 4. Cập nhật last message cursor - CHỈ các cột cursor, không Save cả
	// row: struct ở đây có thể đã cũ so với thay đổi của agent
	if err := s.conversationRepo.UpdateLastMessage(ctx, conversation.ID, inbound.Content, inbound.Timestamp); err != nil {
		s.logger.Warn("failed to update conversation last message", zap.Error(err))
	}

	s.publishMessage(store.ID, conversation.ID, userMsg, customer.Name, string(inbound.Channel))

	// 5. Gate AI: đọc lại conversation NGAY TRƯỚC khi gọi AI - agent có
	// thể vừa suspend trong lúc các bước trên chạy
	fresh, err := s.conversationRepo.FindByID(ctx, conversation.ID)
	if err != nil {
		s.logger.Warn("failed to re-read conversation before ai gate", zap.Error(err))
		fresh = conversation
	}
	if !fresh.AiActive() {
		s.logger.Info("ai suspended, leaving inbound for agent",
			zap.String("conversation_id", conversation.ID.String()),
		)
		return result, nil
	}

	// 6. AI reply (hoặc fallback)
	replyMsg, usedFallback := s.generateReply(ctx, store, conversation, inbound.Content)
	if replyMsg == nil {
		return result, nil
	}
	result.AiReplied = true
	result.UsedFallback = usedFallback
	result.ReplyContent = replyMsg.Content
	result.ReplyMessageID = replyMsg.ID

	// 7. Dispatch ra channel gốc
	s.dispatch(ctx, store, inbound.Channel, customer.ExternalKey, replyMsg)

	// 8. Cập nhật cursor + realtime event cho câu trả lời. Agent có thể đã
	// suspend AI trong lúc AI call chạy (window dài bằng reply timeout) -
	// targeted update không được ghi đè flag đó
	if err := s.conversationRepo.UpdateLastMessage(ctx, conversation.ID, replyMsg.Content, replyMsg.CreatedAt); err != nil {
		s.logger.Warn("failed to update conversation after reply", zap.Error(err))
	}
	s.publishMessage(store.ID, conversation.ID, replyMsg, "", string(inbound.Channel))

	s.logger.Info("inbound event processed",
		zap.String("conversation_id", conversation.ID.String()),
		zap.Bool("customer_created", result.CustomerCreated),
		zap.Bool("conversation_created", result.ConversationCreated),
		zap.Bool("ai_replied", result.AiReplied),
		zap.Bool("used_fallback", result.UsedFallback),
	)

	return result, nil
}

// ResolveLead xử lý lead-capture form - không gọi AI
func (s *messageService) ResolveLead(ctx context.Context, store *models.Store, inbound *channel.InboundEvent) (*ProcessResult, error) {
	result := &ProcessResult{}

	customer, customerCreated, err := s.resolveCustomer(ctx, store, inbound)
	if err != nil {
		return nil, err
	}
	result.CustomerID = customer.ID
	result.CustomerCreated = customerCreated

	conversation, conversationCreated, err := s.conversationRepo.FindOrCreateOpen(ctx, store.ID, customer.ID)
	if err != nil {
		return nil, err
	}
	result.ConversationID = conversation.ID
	result.ConversationCreated = conversationCreated

	// Lead form có thể kèm lời nhắn đầu tiên
	if inbound.Content != "" {
		leadMsg := &models.Message{
			ConversationID: conversation.ID,
			Role:           models.RoleUser,
			Content:        inbound.Content,
		}
		if err := s.messageRepo.Create(ctx, leadMsg); err != nil {
			s.logger.Warn("failed to save lead message", zap.Error(err))
		} else {
			result.UserMessageID = leadMsg.ID
			if err := s.conversationRepo.UpdateLastMessage(ctx, conversation.ID, inbound.Content, time.Now()); err != nil {
				s.logger.Warn("failed to update conversation after lead", zap.Error(err))
			}
			s.publishMessage(store.ID, conversation.ID, leadMsg, customer.Name, string(inbound.Channel))
		}
	}

	return result, nil
}

// SendAgentMessage agent gửi tin nhắn vào conversation
func (s *messageService) SendAgentMessage(ctx context.Context, store *models.Store, conversationID uuid.UUID, content string) (*models.Message, error) {
	conversation, err := s.conversationRepo.FindByID(ctx, conversationID)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrNotFound, "conversation không tồn tại")
	}
	if conversation.StoreID != store.ID {
		return nil, apperrors.New(apperrors.ErrForbidden, "conversation không thuộc store này")
	}

	customer, err := s.customerRepo.FindByID(ctx, conversation.CustomerID)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrNotFound, "customer không tồn tại")
	}

	msg := &models.Message{
		ConversationID: conversation.ID,
		Role:           models.RoleAgent,
		Content:        content,
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, err
	}

	// Dispatch ra channel của customer - lỗi gửi được surface verbatim
	// cho agent (khác với widget path)
	if err := s.dispatch(ctx, store, customer.Channel, customer.ExternalKey, msg); err != nil {
		return msg, err
	}

	if err := s.conversationRepo.UpdateLastMessage(ctx, conversation.ID, content, msg.CreatedAt); err != nil {
		s.logger.Warn("failed to update conversation after agent send", zap.Error(err))
	}
	s.publishMessage(store.ID, conversation.ID, msg, "", string(customer.Channel))

	return msg, nil
}

// ===========================================================================
// Internal helpers
// ===========================================================================

// resolveCustomer tìm hoặc tạo customer từ inbound event
func (s *messageService) resolveCustomer(ctx context.Context, store *models.Store, inbound *channel.InboundEvent) (*models.Customer, bool, error) {
	customer := &models.Customer{
		StoreID:     store.ID,
		Channel:     inbound.Channel,
		ExternalKey: inbound.ExternalKey,
		Name:        inbound.DisplayName,
	}
	if inbound.Email != "" {
		customer.Email = &inbound.Email
	}
	if inbound.Phone != "" {
		customer.Phone = &inbound.Phone
	}
	if inbound.AvatarURL != "" {
		customer.AvatarURL = &inbound.AvatarURL
	}

	existing, created, err := s.customerRepo.FindOrCreate(ctx, customer)
	if err != nil {
		return nil, false, err
	}

	// Lead form có thể bổ sung contact info cho customer có sẵn
	if !created {
		if inbound.DisplayName != "" && !existing.HasRealName() {
			existing.Name = inbound.DisplayName
		}
		if inbound.Email != "" && (existing.Email == nil || *existing.Email == "") {
			existing.Email = &inbound.Email
		}
		if inbound.Phone != "" && (existing.Phone == nil || *existing.Phone == "") {
			existing.Phone = &inbound.Phone
		}
	}

	existing.TouchInteraction()
	if err := s.customerRepo.Update(ctx, existing); err != nil {
		s.logger.Warn("failed to touch customer interaction", zap.Error(err))
	}

	// Enrich profile từ Facebook nếu vẫn mang placeholder name (async)
	if !existing.HasRealName() && inbound.Channel == models.ChannelFacebook {
		go s.fetchAndUpdateFBProfile(existing, store.Credentials.FbPageAccessToken)
	}

	return existing, created, nil
}

// fetchAndUpdateFBProfile gọi Facebook Graph API lấy name/avatar cho customer
func (s *messageService) fetchAndUpdateFBProfile(customer *models.Customer, accessToken string) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if accessToken == "" {
		s.logger.Warn("fetch fb profile: missing page access token")
		return
	}

	ch, err := s.channelRegistry.Get(models.ChannelFacebook)
	if err != nil {
		s.logger.Warn("fetch fb profile: channel not found", zap.Error(err))
		return
	}

	fbChannel, ok := ch.(*channel.FacebookChannel)
	if !ok {
		s.logger.Warn("fetch fb profile: invalid channel type")
		return
	}

	profile, err := fbChannel.GetUserProfile(ctx, customer.ExternalKey, accessToken)
	if err != nil {
		s.logger.Warn("fetch fb profile: api error", zap.Error(err))
		return
	}

	customer.Name = profile.Name
	if profile.ProfilePic != "" {
		customer.AvatarURL = &profile.ProfilePic
	}
	if err := s.customerRepo.Update(ctx, customer); err != nil {
		s.logger.Warn("fetch fb profile: failed to update customer", zap.Error(err))
		return
	}

	s.logger.Info("fb profile updated",
		zap.String("customer_id", customer.ID.String()),
		zap.String("name", profile.Name),
	)
}

// generateReply gọi AI với timeout, trả fallback khi AI unavailable.
// Message trả về đã được persist; nil nghĩa là không persist được gì.
func (s *messageService) generateReply(ctx context.Context, store *models.Store, conversation *models.Conversation, userMessage string) (*models.Message, bool) {
	// Assemble context: persona + knowledge COMPLETED
	docs, err := s.knowledgeRepo.FindCompletedByStore(ctx, store.ID)
	if err != nil {
		s.logger.Warn("failed to load knowledge documents", zap.Error(err))
		docs = nil
	}
	prompt := s.promptBuilder.Build(store, docs)

	// History: 50 lượt GẦN NHẤT theo thứ tự thời gian - hội thoại dài phải
	// cắt bỏ phần đầu, không phải phần cuối
	history, err := s.messageRepo.FindRecentByConversation(ctx, conversation.ID, 50)
	if err != nil {
		s.logger.Warn("failed to load history", zap.Error(err))
		history = nil
	}
	// Bỏ message USER vừa lưu ra khỏi history - nó là lượt hiện tại
	if n := len(history); n > 0 && history[n-1].Role == models.RoleUser && history[n-1].Content == userMessage {
		history = history[:n-1]
	}

	aiCtx, cancel := context.WithTimeout(ctx, s.replyTimeout)
	defer cancel()

	content, err := s.responder.Reply(aiCtx, prompt, history, userMessage)
	usedFallback := false
	if err != nil {
		if !errors.Is(err, apperrors.ErrAiUnavailable) {
			s.logger.Error("unexpected ai error", zap.Error(err))
		}
		s.logger.Warn("ai unavailable, substituting fallback",
			zap.String("conversation_id", conversation.ID.String()),
			zap.Error(err),
		)
		content = s.fallbackMessage
		usedFallback = true
	}

	replyMsg := &models.Message{
		ConversationID: conversation.ID,
		Role:           models.RoleAi,
		Content:        content,
	}
	if err := s.messageRepo.Create(ctx, replyMsg); err != nil {
		s.logger.Error("failed to save ai message", zap.Error(err))
		return nil, usedFallback
	}

	return replyMsg, usedFallback
}

// dispatch gửi message ra channel tương ứng
// Website channel chỉ persist (đã làm ở trên) - Send là noop thành công
func (s *messageService) dispatch(ctx context.Context, store *models.Store, ch models.Channel, recipientKey string, msg *models.Message) error {
	adapter, err := s.channelRegistry.Get(ch)
	if err != nil {
		s.logger.Error("channel not registered", zap.String("channel", string(ch)))
		return err
	}

	outbound := &channel.OutboundMessage{
		RecipientKey: recipientKey,
		Content:      msg.Content,
	}

	sendResult, err := adapter.Send(ctx, store.ID, store.Credentials, outbound)
	if err != nil {
		s.logger.Error("channel send transport error",
			zap.String("channel", string(ch)),
			zap.Error(err),
		)
		return err
	}

	if !sendResult.Success {
		s.logger.Error("channel send failed",
			zap.String("channel", string(ch)),
			zap.Error(sendResult.Error),
		)
		return sendResult.Error
	}

	if sendResult.ChannelMessageID != "" {
		msg.ChannelMessageID = &sendResult.ChannelMessageID
	}

	return nil
}

// publishMessage đẩy realtime event cho agent dashboard (best-effort)
func (s *messageService) publishMessage(storeID, conversationID uuid.UUID, msg *models.Message, customerName, channelType string) {
	if s.publisher == nil {
		return
	}
	go func() {
		event := &realtime.MessageEvent{
			MessageID:      msg.ID,
			ConversationID: conversationID,
			Role:           string(msg.Role),
			Content:        msg.Content,
			CreatedAt:      msg.CreatedAt,
			CustomerName:   customerName,
			Channel:        channelType,
		}
		if err := s.publisher.PublishNewMessage(storeID, event); err != nil {
			s.logger.Warn("failed to publish message event", zap.Error(err))
		}
	}()
}
