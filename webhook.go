/*
Copyright 2025 Payrun Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package payrun

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/payrunhq/payrun/config"
	"github.com/payrunhq/payrun/internal/notification"
	"github.com/payrunhq/payrun/internal/request"
)

// NewWebhook represents the structure of a webhook notification.
// It includes an event type and associated payload data.
type NewWebhook struct {
	Event   string      `json:"event"` // The event type that triggered the webhook.
	Payload interface{} `json:"data"`  // The data associated with the event.
}

// OrderCompletedPayload is the body delivered downstream when an order
// reaches a terminal successful state.
type OrderCompletedPayload struct {
	OrderID     string    `json:"order_id"`
	Code        string    `json:"code"`
	CompletedAt time.Time `json:"completed_at"`
}

// SendWebhook enqueues a webhook notification task. A blank downstream URL
// disables delivery entirely.
func SendWebhook(newWebhook NewWebhook) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	if conf.Notification.Webhook.Url == "" {
		return nil
	}

	client := asynq.NewClient(asynq.RedisClientOpt{Addr: conf.Redis.Dns})
	defer func() {
		if err := client.Close(); err != nil {
			logrus.Error(err)
		}
	}()

	payload, err := json.Marshal(newWebhook)
	if err != nil {
		return err
	}
	taskOptions := []asynq.Option{
		asynq.Queue(conf.Queue.WebhookQueue),
		asynq.MaxRetry(conf.Queue.MaxRetryAttempts),
	}
	task := asynq.NewTask(conf.Queue.WebhookQueue, payload, taskOptions...)
	info, err := client.Enqueue(task)
	if err != nil {
		log.Println(err, info)
		return err
	}
	return nil
}

// ProcessWebhook processes a webhook notification task from the queue and
// delivers it to the configured downstream URL.
func ProcessWebhook(_ context.Context, task *asynq.Task) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	if conf.Notification.Webhook.Url == "" {
		return nil
	}
	var payload NewWebhook
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		log.Printf("Error unmarshaling task payload: %v", err)
		return err
	}
	log.Printf("Processing webhook: %+v\n", payload.Event)
	return deliverWebhook(conf, payload)
}

func deliverWebhook(conf *config.Configuration, data NewWebhook) error {
	body, err := request.ToJsonReq(data)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPost, conf.Notification.Webhook.Url, body)
	if err != nil {
		return err
	}
	for key, value := range conf.Notification.Webhook.Headers {
		req.Header.Set(key, value)
	}

	var response map[string]interface{}
	resp, err := request.Call(req, &response)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Printf("Webhook delivery failed with status code: %d\n", resp.StatusCode)
		return nil
	}
	log.Println("Webhook notification sent successfully:", response)
	return nil
}

// NotifyOrderCompleted is the completion hook wired into the datasource. It
// publishes the event asynchronously so the write path never waits on the
// queue.
func NotifyOrderCompleted(orderID, code string) error {
	go func() {
		err := SendWebhook(NewWebhook{
			Event: "order.completed",
			Payload: OrderCompletedPayload{
				OrderID:     orderID,
				Code:        code,
				CompletedAt: time.Now(),
			},
		})
		if err != nil {
			notification.NotifyError(err)
		}
	}()
	return nil
}
