package main

import (
	"context"
	"fmt"
	"log"

	"github.com/zulandar/switchboard/internal/chat"
	"github.com/zulandar/switchboard/internal/config"
	"github.com/zulandar/switchboard/internal/db"
	"github.com/zulandar/switchboard/internal/models"
	"github.com/zulandar/switchboard/internal/store"
	"gorm.io/gorm"
)

const defaultConfigPath = "switchboard.yaml"

// connectFromConfig loads config and opens the database.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, gormDB, nil
}

// newMediator wires the chat core on gormDB.
func newMediator(cfg *config.Config, gormDB *gorm.DB, delivery chat.Delivery) (*chat.Mediator, error) {
	st := store.New(gormDB)
	return chat.NewMediator(chat.MediatorOpts{
		Assignments:  chat.NewAssignmentManager(st, cfg.Chat.AssignTimeout),
		Messages:     st,
		Participants: st,
		Delivery:     delivery,
	})
}

// discardDelivery is used by one-shot CLI commands, which have no live
// subscribers. Connected clients see the message on their next history read.
var discardDelivery = chat.DeliveryFunc(func(ctx context.Context, conversationID string, msg models.ChatMessage) error {
	log.Printf("sb: message %d stored for %s without live delivery", msg.ID, conversationID)
	return nil
})
