package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// TaskHandlerFunc обрабатывает одну задачу из очереди.
// Ненулевая ошибка отправляет сообщение в DLQ (nack без requeue).
type TaskHandlerFunc func(ctx context.Context, payload GenerationTaskPayload) error

// TaskConsumer читает задачи генерации из RabbitMQ и передает их обработчику.
type TaskConsumer struct {
	conn      *amqp.Connection
	queueName string
	handler   TaskHandlerFunc
	logger    *zap.Logger
	done      chan struct{}
	channel   *amqp.Channel
}

// NewTaskConsumer создает консьюмера очереди задач.
func NewTaskConsumer(conn *amqp.Connection, queueName string, handler TaskHandlerFunc, logger *zap.Logger) *TaskConsumer {
	if logger == nil {
		panic("Logger is nil for TaskConsumer")
	}
	return &TaskConsumer{
		conn:      conn,
		queueName: queueName,
		handler:   handler,
		logger:    logger.Named("TaskConsumer"),
		done:      make(chan struct{}),
	}
}

// Start объявляет топологию очередей и запускает цикл потребления.
func (c *TaskConsumer) Start(ctx context.Context) error {
	var err error
	c.channel, err = c.conn.Channel()
	if err != nil {
		c.logger.Error("Не удалось открыть канал для консьюмера задач", zap.Error(err))
		return fmt.Errorf("failed to open channel: %w", err)
	}

	dlxName := c.queueName + "_dlx"
	dlqName := c.queueName + "_dlq"
	const dlqRoutingKey = "dlq"

	// Dead Letter Exchange и Queue: сообщения с nack без requeue уходят туда
	err = c.channel.ExchangeDeclare(dlxName, "direct", true, false, false, false, nil)
	if err != nil {
		_ = c.channel.Close()
		return fmt.Errorf("failed to declare DLX '%s': %w", dlxName, err)
	}
	_, err = c.channel.QueueDeclare(dlqName, true, false, false, false, nil)
	if err != nil {
		_ = c.channel.Close()
		return fmt.Errorf("failed to declare DLQ '%s': %w", dlqName, err)
	}
	if err = c.channel.QueueBind(dlqName, dlqRoutingKey, dlxName, false, nil); err != nil {
		_ = c.channel.Close()
		return fmt.Errorf("failed to bind DLQ '%s': %w", dlqName, err)
	}

	// Основная очередь задач: durable, lazy, с привязкой к DLX
	_, err = c.channel.QueueDeclare(
		c.queueName,
		true,
		false,
		false,
		false,
		amqp.Table{
			"x-queue-mode":              "lazy",
			"x-dead-letter-exchange":    dlxName,
			"x-dead-letter-routing-key": dlqRoutingKey,
		},
	)
	if err != nil {
		_ = c.channel.Close()
		return fmt.Errorf("failed to declare queue '%s': %w", c.queueName, err)
	}

	// Одна задача за раз: генерация длинная и дорогая
	if err = c.channel.Qos(1, 0, false); err != nil {
		_ = c.channel.Close()
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := c.channel.Consume(c.queueName, "", false, false, false, false, nil)
	if err != nil {
		_ = c.channel.Close()
		c.logger.Error("Не удалось зарегистрировать консьюмера", zap.Error(err), zap.String("queue", c.queueName))
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info("Консьюмер задач запущен, ожидание сообщений...", zap.String("queue", c.queueName))

	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("Перехвачена паника в горутине консьюмера задач", zap.Any("panic", r))
			}
			c.logger.Info("Горутина консьюмера задач завершается...")
			close(c.done)
			if c.channel != nil {
				_ = c.channel.Close()
			}
		}()

		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					c.logger.Info("Канал сообщений закрыт, выход из горутины консьюмера.")
					return
				}
				c.handleMessage(ctx, msg)
			case <-ctx.Done():
				c.logger.Info("Контекст отменен, остановка консьюмера задач.")
				return
			}
		}
	}()

	return nil
}

// handleMessage обрабатывает одно сообщение: десериализация, обработчик, ack/nack.
func (c *TaskConsumer) handleMessage(ctx context.Context, msg amqp.Delivery) {
	var payload GenerationTaskPayload
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		c.logger.Error("Ошибка десериализации задачи, nack без requeue",
			zap.Error(err), zap.String("messageBody", string(msg.Body)))
		_ = msg.Nack(false, false)
		return
	}

	log := c.logger.With(zap.String("task_id", payload.TaskID), zap.String("kind", payload.Kind))
	log.Info("Получена задача")

	if err := c.handler(ctx, payload); err != nil {
		// Requeue=false: 'плохая' задача уходит в DLQ, а не в бесконечный цикл
		log.Error("Ошибка обработки задачи, nack без requeue", zap.Error(err))
		_ = msg.Nack(false, false)
		return
	}

	log.Info("Задача обработана, подтверждаем сообщение")
	_ = msg.Ack(false)
}

// Stop аккуратно останавливает консьюмера.
func (c *TaskConsumer) Stop() error {
	c.logger.Info("Остановка консьюмера задач...")
	if c.channel != nil {
		if err := c.channel.Cancel("", false); err != nil {
			c.logger.Error("Ошибка отмены подписки консьюмера", zap.Error(err))
		}
	}

	select {
	case <-c.done:
		c.logger.Info("Горутина консьюмера задач завершилась.")
	case <-time.After(5 * time.Second):
		c.logger.Warn("Таймаут ожидания остановки горутины консьюмера задач.")
	}

	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			c.logger.Warn("Ошибка закрытия канала консьюмера при остановке", zap.Error(err))
		}
	}
	c.logger.Info("Консьюмер задач остановлен.")
	return nil
}

// ConnectRabbitMQ пытается подключиться к RabbitMQ с несколькими попытками.
func ConnectRabbitMQ(url string, logger *zap.Logger) (*amqp.Connection, error) {
	var conn *amqp.Connection
	var err error
	maxRetries := 5
	retryDelay := 5 * time.Second

	for i := 0; i < maxRetries; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			return conn, nil
		}
		logger.Warn("Не удалось подключиться к RabbitMQ, повтор...",
			zap.Int("attempt", i+1), zap.Int("max", maxRetries), zap.Error(err))
		time.Sleep(retryDelay)
	}
	return nil, err
}
