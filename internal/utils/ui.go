package utils

import (
	"github.com/BatmanBruc/vip-orders-bot/types"
	"github.com/go-telegram/bot/models"
)

const buttonsPerRow = 2

// BuildInlineKeyboard lays actions out two per row.
func BuildInlineKeyboard(actions []types.Action) models.InlineKeyboardMarkup {
	pad := func(s string) string { return " " + s + " " }
	rows := make([][]models.InlineKeyboardButton, 0)
	row := make([]models.InlineKeyboardButton, 0, buttonsPerRow)
	for i, action := range actions {
		if i > 0 && i%buttonsPerRow == 0 {
			rows = append(rows, row)
			row = make([]models.InlineKeyboardButton, 0, buttonsPerRow)
		}
		row = append(row, models.InlineKeyboardButton{
			Text:         pad(action.Text),
			CallbackData: action.CallbackData,
		})
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}

	return models.InlineKeyboardMarkup{
		InlineKeyboard: rows,
	}
}

// EmptyKeyboard removes the inline buttons of an edited message.
func EmptyKeyboard() *models.InlineKeyboardMarkup {
	return &models.InlineKeyboardMarkup{
		InlineKeyboard: [][]models.InlineKeyboardButton{},
	}
}
