package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/floroz/commerce/internal/auction"
)

func (s *Server) index(c *gin.Context) {
	list, err := s.auctions.ListActiveAuctions(c.Request.Context())
	if err != nil {
		s.internalError(c, err)
		return
	}
	s.render(c, http.StatusOK, "index", gin.H{"Title": "Active Listings", "Auctions": list})
}

// listingOrCategory serves /:slug. Segments that parse as an id are listings.
func (s *Server) listingOrCategory(c *gin.Context) {
	slug := c.Param("slug")
	if id, err := uuid.Parse(slug); err == nil {
		s.renderListing(c, id, http.StatusOK, gin.H{})
		return
	}

	category, list, err := s.auctions.ListCategoryAuctions(c.Request.Context(), slug)
	if err != nil {
		if isNotFound(err) {
			s.notFound(c)
			return
		}
		s.internalError(c, err)
		return
	}
	s.render(c, http.StatusOK, "index", gin.H{"Title": capitalize(category.Name), "Auctions": list})
}

// renderListing shows an auction page; extra carries form state and messages
func (s *Server) renderListing(c *gin.Context, id uuid.UUID, status int, extra gin.H) {
	var viewer *uuid.UUID
	if userID, ok := currentUser(c); ok {
		viewer = &userID
	}

	listing, err := s.auctions.GetListing(c.Request.Context(), id, viewer)
	if err != nil {
		if isNotFound(err) {
			s.notFound(c)
			return
		}
		s.internalError(c, err)
		return
	}

	for _, key := range []string{"Price", "Body"} {
		if _, ok := extra[key]; !ok {
			extra[key] = ""
		}
	}
	extra["Title"] = listing.Auction.Name
	extra["Listing"] = listing
	extra["IsOwner"] = viewer != nil && listing.Auction.IsOwnedBy(*viewer)
	s.render(c, status, "listing", extra)
}

func (s *Server) createPage(c *gin.Context) {
	s.renderCreate(c, http.StatusOK, createAuctionForm{}, "")
}

func (s *Server) renderCreate(c *gin.Context, status int, form createAuctionForm, message string) {
	categories, err := s.auctions.Categories(c.Request.Context())
	if err != nil {
		s.internalError(c, err)
		return
	}
	s.render(c, status, "create", gin.H{
		"Title":      "Create Listing",
		"Form":       form,
		"Categories": categories,
		"Message":    message,
	})
}

func (s *Server) create(c *gin.Context) {
	userID, _ := currentUser(c)

	var form createAuctionForm
	if err := c.ShouldBind(&form); err != nil {
		s.renderCreate(c, http.StatusUnprocessableEntity, form, formMessage(err))
		return
	}

	var minPrice int64
	if strings.TrimSpace(form.MinPrice) != "" {
		parsed, err := auction.ParseAmount(form.MinPrice)
		if err != nil {
			s.renderCreate(c, http.StatusUnprocessableEntity, form, "Enter a valid minimum price.")
			return
		}
		minPrice = parsed
	}

	var categoryID *uuid.UUID
	if form.CategoryID != "" {
		id, err := uuid.Parse(form.CategoryID)
		if err != nil {
			s.renderCreate(c, http.StatusUnprocessableEntity, form, "Category is not valid.")
			return
		}
		categoryID = &id
	}

	created, err := s.auctions.CreateAuction(c.Request.Context(), auction.CreateAuctionCommand{
		Name:        form.Name,
		Description: form.Description,
		ImageURL:    form.ImageURL,
		MinPrice:    minPrice,
		CategoryID:  categoryID,
		CreatorID:   userID,
	})
	if err != nil {
		if isAuctionInputError(err) {
			s.renderCreate(c, http.StatusUnprocessableEntity, form, sentence(err))
			return
		}
		s.internalError(c, err)
		return
	}

	c.Redirect(http.StatusSeeOther, "/"+created.ID.String())
}

func isAuctionInputError(err error) bool {
	for _, target := range []error{
		auction.ErrNameRequired,
		auction.ErrNameTooLong,
		auction.ErrDescriptionRequired,
		auction.ErrDescriptionTooLong,
		auction.ErrInvalidImageURL,
		auction.ErrNegativeMinPrice,
		auction.ErrMinPriceTooHigh,
		auction.ErrCategoryNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

func (s *Server) addBid(c *gin.Context) {
	id, ok := s.auctionParam(c)
	if !ok {
		return
	}
	userID, _ := currentUser(c)

	var form bidForm
	if err := c.ShouldBind(&form); err != nil {
		s.renderListing(c, id, http.StatusUnprocessableEntity, gin.H{"Message": "Enter a bid amount."})
		return
	}
	price, err := auction.ParseAmount(form.Price)
	if err != nil {
		s.renderListing(c, id, http.StatusUnprocessableEntity, gin.H{"Message": "Enter a valid amount.", "Price": form.Price})
		return
	}

	_, err = s.auctions.PlaceBid(c.Request.Context(), auction.PlaceBidCommand{
		AuctionID: id,
		BidderID:  userID,
		Price:     price,
	})
	if err != nil {
		var verr *auction.ValidationError
		switch {
		case errors.As(err, &verr):
			s.renderListing(c, id, http.StatusUnprocessableEntity, gin.H{"Message": verr.Message(), "Price": form.Price})
		case errors.Is(err, auction.ErrInvalidAmount):
			s.renderListing(c, id, http.StatusUnprocessableEntity, gin.H{"Message": "Enter a valid amount.", "Price": form.Price})
		case isNotFound(err):
			s.notFound(c)
		default:
			s.internalError(c, err)
		}
		return
	}

	c.Redirect(http.StatusSeeOther, "/"+id.String())
}

func (s *Server) editWatchlist(c *gin.Context) {
	id, ok := s.auctionParam(c)
	if !ok {
		return
	}
	userID, _ := currentUser(c)

	if _, err := s.auctions.ToggleWatchlist(c.Request.Context(), auction.WatchlistCommand{
		UserID:    userID,
		AuctionID: id,
	}); err != nil {
		if isNotFound(err) {
			s.notFound(c)
			return
		}
		s.internalError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/"+id.String())
}

func (s *Server) closeAuction(c *gin.Context) {
	id, ok := s.auctionParam(c)
	if !ok {
		return
	}
	userID, _ := currentUser(c)

	if _, err := s.auctions.CloseAuction(c.Request.Context(), auction.CloseAuctionCommand{
		AuctionID:   id,
		RequesterID: userID,
	}); err != nil {
		if isNotFound(err) {
			s.notFound(c)
			return
		}
		s.internalError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, "/"+id.String())
}

func (s *Server) addComment(c *gin.Context) {
	id, ok := s.auctionParam(c)
	if !ok {
		return
	}
	userID, _ := currentUser(c)

	var form commentForm
	if err := c.ShouldBind(&form); err != nil {
		s.logger.WithError(err).WithField("auction_id", id).Warn("unreadable comment form")
		s.renderListing(c, id, http.StatusBadRequest, gin.H{"Message": "Comment could not be read."})
		return
	}

	_, err := s.auctions.AddComment(c.Request.Context(), auction.AddCommentCommand{
		AuctionID: id,
		AuthorID:  userID,
		Body:      form.Body,
	})
	if err != nil {
		switch {
		case errors.Is(err, auction.ErrCommentRequired):
			s.logger.WithFields(logrus.Fields{"auction_id": id, "user_id": userID}).Warn("rejected blank comment")
			s.renderListing(c, id, http.StatusUnprocessableEntity, gin.H{"Message": "Comment must not be empty."})
		case isNotFound(err):
			s.notFound(c)
		default:
			s.internalError(c, err)
		}
		return
	}
	c.Redirect(http.StatusSeeOther, "/"+id.String())
}

func (s *Server) watchlist(c *gin.Context) {
	userID, _ := currentUser(c)

	list, err := s.auctions.ListWatchlist(c.Request.Context(), userID)
	if err != nil {
		s.internalError(c, err)
		return
	}
	s.render(c, http.StatusOK, "index", gin.H{"Title": "Watchlist", "Auctions": list})
}

func (s *Server) categories(c *gin.Context) {
	list, err := s.auctions.ListCategories(c.Request.Context())
	if err != nil {
		s.internalError(c, err)
		return
	}
	s.render(c, http.StatusOK, "categories", gin.H{"Title": "Categories", "Categories": list})
}

func (s *Server) auctionParam(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		s.notFound(c)
		return uuid.Nil, false
	}
	return id, true
}
