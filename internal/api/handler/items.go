package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/gavelhouse/gavel/internal/api/middleware"
	"github.com/gavelhouse/gavel/internal/api/response"
	"github.com/gavelhouse/gavel/internal/items"
	"github.com/gavelhouse/gavel/internal/storage"
)

// ItemsHandler serves listing CRUD.
type ItemsHandler struct {
	app *items.App
}

// NewItemsHandler creates an items handler.
func NewItemsHandler(app *items.App) *ItemsHandler {
	return &ItemsHandler{app: app}
}

type createItemRequest struct {
	Description string          `json:"description"`
	StartingBid decimal.Decimal `json:"starting_bid"`
	BuyNowPrice decimal.Decimal `json:"buy_now_price"`
	DurationSec int             `json:"duration_sec"`
}

// List returns every item.
func (h *ItemsHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.ListItems(r.Context())
	if err != nil {
		response.Error(w, http.StatusInternalServerError, "failed to fetch items")
		return
	}
	response.JSON(w, http.StatusOK, list)
}

// Get returns a single item.
func (h *ItemsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := h.app.GetItem(r.Context(), id)
	if err != nil {
		if errors.Is(err, storage.ErrItemNotFound) {
			response.Error(w, http.StatusNotFound, "item not found")
			return
		}
		response.Error(w, http.StatusInternalServerError, "failed to fetch item")
		return
	}
	response.JSON(w, http.StatusOK, item)
}

// Create lists a new item owned by the authenticated caller.
func (h *ItemsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.app.CreateItem(r.Context(), items.CreateItemRequest{
		Description: req.Description,
		StartingBid: req.StartingBid,
		BuyNowPrice: req.BuyNowPrice,
		DurationSec: req.DurationSec,
		Owner:       middleware.Identity(r.Context()),
	})
	if err != nil {
		switch {
		case errors.Is(err, items.ErrMissingDescription),
			errors.Is(err, items.ErrInvalidStartingBid),
			errors.Is(err, items.ErrInvalidBuyNow),
			errors.Is(err, items.ErrInvalidDuration):
			response.Error(w, http.StatusBadRequest, err.Error())
		default:
			response.Error(w, http.StatusInternalServerError, "failed to create item")
		}
		return
	}

	response.JSON(w, http.StatusCreated, item)
}

// Delete removes a listing owned by the authenticated caller.
func (h *ItemsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		response.Error(w, http.StatusBadRequest, "invalid item id")
		return
	}

	err = h.app.RemoveItem(r.Context(), id, middleware.Identity(r.Context()))
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrItemNotFound):
			response.Error(w, http.StatusNotFound, "item not found")
		case errors.Is(err, items.ErrNotOwner):
			response.Error(w, http.StatusForbidden, err.Error())
		case errors.Is(err, items.ErrItemSold):
			response.Error(w, http.StatusConflict, err.Error())
		default:
			response.Error(w, http.StatusInternalServerError, "failed to remove item")
		}
		return
	}

	response.NoContent(w)
}
