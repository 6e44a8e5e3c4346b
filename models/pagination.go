package models

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"github.com/casahogar/cashbox_backend/utils"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type PageInfo struct {
	StartCursor string `json:"startCursor"`
	EndCursor   string `json:"endCursor"`
	HasNextPage *bool  `json:"hasNextPage,omitempty"`
}

type Identifier interface {
	GetId() int
}

type Cursor interface {
	GetCursor() string
}

type CompositeCursor interface {
	Cursor
	Identifier
}

type Edge[N any] struct {
	Node   *N     `json:"node"`
	Cursor string `json:"cursor"`
}

type Connection[N any] struct {
	PageInfo *PageInfo `json:"pageInfo"`
	Edges    []Edge[N] `json:"edges"`
}

func normalizeLimit(limit *int) int {
	if limit == nil || *limit <= 0 {
		return defaultPageSize
	}
	if *limit > maxPageSize {
		return maxPageSize
	}
	return *limit
}

func DecodeCursor(cursor *string) (string, error) {
	decodedCursor := ""
	if cursor != nil {
		b, err := base64.StdEncoding.DecodeString(*cursor)
		if err != nil {
			return decodedCursor, err
		}
		decodedCursor = string(b)
	}
	return decodedCursor, nil
}

func EncodeCursor(cursor string) string {
	return base64.StdEncoding.EncodeToString([]byte(cursor))
}

func DecodeCompositeCursor(cursor *string) (string, int) {
	if cursor == nil || *cursor == "" {
		return "", 0
	}
	decoded, err := base64.StdEncoding.DecodeString(*cursor)
	if err != nil {
		return "", 0
	}
	parts := strings.Split(string(decoded), "|")
	if len(parts) != 2 {
		return "", 0
	}
	id, err := strconv.Atoi(parts[1])
	if err != nil {
		return "", 0
	}
	return parts[0], id
}

func EncodeCompositeCursor(value string, id int) string {
	return base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%s|%d", value, id)))
}

// FetchPageCompositeCursor pages newest first on (cursorColumn, id).
func FetchPageCompositeCursor[T CompositeCursor](dbCtx *gorm.DB, limit int, after *string, cursorColumn string) (*Connection[T], error) {
	nodes := make([]*T, 0)

	dbCtx = dbCtx.Order(cursorColumn + " DESC, id DESC")
	decodedCursor, cursorId := DecodeCompositeCursor(after)
	if decodedCursor != "" {
		dbCtx = dbCtx.Where(
			fmt.Sprintf("(%[1]s < ? OR (%[1]s = ? AND id < ?))", cursorColumn),
			decodedCursor, decodedCursor, cursorId)
	}
	if err := dbCtx.Limit(limit + 1).Find(&nodes).Error; err != nil {
		return nil, err
	}

	return connectNodes(nodes, limit, func(n T) string {
		return EncodeCompositeCursor(n.GetCursor(), n.GetId())
	}), nil
}

// FetchPageById pages newest first on id alone.
func FetchPageById[T Identifier](dbCtx *gorm.DB, limit int, after *string) (*Connection[T], error) {
	nodes := make([]*T, 0)

	dbCtx = dbCtx.Order("id DESC")
	decodedCursor, err := DecodeCursor(after)
	if err != nil {
		return nil, utils.NewValidationError("after", "invalid cursor")
	}
	if decodedCursor != "" {
		id, err := strconv.Atoi(decodedCursor)
		if err != nil {
			return nil, utils.NewValidationError("after", "invalid cursor")
		}
		dbCtx = dbCtx.Where("id < ?", id)
	}
	if err := dbCtx.Limit(limit + 1).Find(&nodes).Error; err != nil {
		return nil, err
	}

	return connectNodes(nodes, limit, func(n T) string {
		return EncodeCursor(strconv.Itoa(n.GetId()))
	}), nil
}

func connectNodes[T any](nodes []*T, limit int, cursorOf func(T) string) *Connection[T] {
	count := 0
	hasNextPage := false
	edges := make([]Edge[T], 0, len(nodes))
	for _, node := range nodes {
		if count == limit {
			hasNextPage = true
			break
		}
		edges = append(edges, Edge[T]{Node: node, Cursor: cursorOf(*node)})
		count++
	}

	pageInfo := PageInfo{HasNextPage: utils.NewFalse()}
	if count > 0 {
		pageInfo = PageInfo{
			StartCursor: edges[0].Cursor,
			EndCursor:   edges[count-1].Cursor,
			HasNextPage: &hasNextPage,
		}
	}
	return &Connection[T]{PageInfo: &pageInfo, Edges: edges}
}
