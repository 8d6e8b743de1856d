// Package refs generates order references and sequential invoice numbers.
package refs

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"storefront-backend/models"
)

type Generator struct {
	node *snowflake.Node
}

func NewGenerator(nodeID int64) (*Generator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	return &Generator{node: node}, nil
}

// OrderReference returns a unique, time-ordered reference like ORD-1A2B3C4D5E.
func (g *Generator) OrderReference() string {
	return "ORD-" + strings.ToUpper(g.node.Generate().Base36())
}

// OneTimeInvoiceNumber returns INV-YYYYMMDD-NNNN, numbered per day.
func (g *Generator) OneTimeInvoiceNumber(tx *gorm.DB, now time.Time) (string, error) {
	day := now.UTC().Format("20060102")
	n, err := next(tx, "invoice:"+day)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("INV-%s-%04d", day, n), nil
}

// PeriodInvoiceNumber returns PINV-YYYYMM-NNNN, numbered per month of periodStart.
func (g *Generator) PeriodInvoiceNumber(tx *gorm.DB, periodStart time.Time) (string, error) {
	month := periodStart.UTC().Format("200601")
	n, err := next(tx, "period-invoice:"+month)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("PINV-%s-%04d", month, n), nil
}

// next increments the named counter inside tx and returns the new value.
func next(tx *gorm.DB, name string) (int64, error) {
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ReferenceCounter{Name: name, Value: 0}).Error; err != nil {
		return 0, fmt.Errorf("init counter %s: %w", name, err)
	}
	if err := tx.Model(&models.ReferenceCounter{}).
		Where("name = ?", name).
		Update("value", gorm.Expr("value + 1")).Error; err != nil {
		return 0, fmt.Errorf("bump counter %s: %w", name, err)
	}
	var c models.ReferenceCounter
	if err := tx.Where("name = ?", name).First(&c).Error; err != nil {
		return 0, fmt.Errorf("read counter %s: %w", name, err)
	}
	return c.Value, nil
}
