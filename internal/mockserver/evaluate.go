package mockserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/quantumdmn/dmn-go/pkg/client"
	"github.com/quantumdmn/dmn-go/pkg/feel"
)

type evaluateRequest struct {
	Context feel.Value `json:"context"`
}

func (s *Server) evaluate(c *gin.Context) {
	if _, err := uuid.Parse(c.Param("projectId")); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "project id must be a UUID"})
		return
	}
	if v := c.Query("version"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "version must be a positive integer"})
			return
		}
	}

	s.mu.RLock()
	fn, ok := s.definitions[c.Param("xmlId")]
	s.mu.RUnlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "definition not found"})
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "request body too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var req evaluateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	switch req.Context.Kind() {
	case feel.KindNull:
		req.Context = feel.Context(nil)
	case feel.KindContext:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "context must be an object"})
		return
	}

	s.evaluations.Add(1)
	values, err := fn(req.Context)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	results := make(map[string]client.EvaluationResult, len(values))
	for id, v := range values {
		results[id] = client.EvaluationResult{DecisionID: id, DecisionName: id, Value: v}
	}
	c.JSON(http.StatusOK, results)
}
