package handler

import (
	"math"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/mealbox/internal/model"
)

const (
	cartItemIDMaxLength   = 128
	cartItemNameMaxLength = 200
)

// ImageURLValidator はカート明細の画像参照を検証する。security.SSRFGuardServiceが満たす。
type ImageURLValidator interface {
	ValidateImageURL(rawURL string) error
}

// CartHandler はデバイスのカートを操作するHTTPハンドラー。
// カートの操作自体は失敗しないため、エラーになるのは入力の検証と存在しない明細の指定のみ。
type CartHandler struct {
	images ImageURLValidator
}

// NewCartHandler はCartHandlerを生成する。
func NewCartHandler(images ImageURLValidator) *CartHandler {
	return &CartHandler{images: images}
}

// addCartItemRequest は明細追加リクエストのボディ。
type addCartItemRequest struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Price    float64 `json:"price"`
	Quantity int     `json:"quantity"`
	ImageURL string  `json:"image_url"`
}

// updateQuantityRequest は数量更新リクエストのボディ。
type updateQuantityRequest struct {
	Quantity *int `json:"quantity"`
}

// GetCart はカートの明細と合計金額を返す。
// GET /api/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	d, ok := deviceFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, d.Cart.Snapshot())
}

// AddItem は明細を追加する。同じIDの明細がある場合は数量を加算する。
// POST /api/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	d, ok := deviceFromRequest(w, r)
	if !ok {
		return
	}

	var req addCartItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	item, apiErr := h.validateItem(req)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	writeJSON(w, http.StatusOK, d.Cart.Add(item))
}

// UpdateItem は明細の数量を更新する。0以下を指定した明細は削除される。
// PATCH /api/cart/items/{id}
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	d, ok := deviceFromRequest(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	var req updateQuantityRequest
	if err := decodeJSON(w, r, &req); err != nil || req.Quantity == nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	if !d.Cart.Has(id) {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewCartItemNotFoundError(id))
		return
	}

	writeJSON(w, http.StatusOK, d.Cart.UpdateQuantity(id, *req.Quantity))
}

// RemoveItem は明細を削除する。
// DELETE /api/cart/items/{id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	d, ok := deviceFromRequest(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	if !d.Cart.Has(id) {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewCartItemNotFoundError(id))
		return
	}

	writeJSON(w, http.StatusOK, d.Cart.Remove(id))
}

// ClearCart はカートを空にする。
// DELETE /api/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	d, ok := deviceFromRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, d.Cart.Clear())
}

// validateItem は追加する明細を検証して正規化する。
func (h *CartHandler) validateItem(req addCartItemRequest) (model.CartItem, *model.APIError) {
	id := strings.TrimSpace(req.ID)
	if id == "" || utf8.RuneCountInString(id) > cartItemIDMaxLength {
		return model.CartItem{}, model.NewInvalidCartItemError("IDが不正です")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" || utf8.RuneCountInString(name) > cartItemNameMaxLength {
		return model.CartItem{}, model.NewInvalidCartItemError("商品名が不正です")
	}
	if req.Price < 0 || math.IsInf(req.Price, 0) || math.IsNaN(req.Price) {
		return model.CartItem{}, model.NewInvalidCartItemError("価格が不正です")
	}
	if req.Quantity < 1 {
		return model.CartItem{}, model.NewInvalidCartItemError("数量は1以上を指定してください")
	}

	imageURL := strings.TrimSpace(req.ImageURL)
	if imageURL != "" && h.images != nil {
		if err := h.images.ValidateImageURL(imageURL); err != nil {
			return model.CartItem{}, model.NewInvalidImageURLError(err.Error())
		}
	}

	return model.CartItem{
		ID:       id,
		Name:     name,
		Price:    req.Price,
		Quantity: req.Quantity,
		ImageURL: imageURL,
	}, nil
}
