// Package docs registers the OpenAPI description served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/analyze": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["analysis"],
                "summary": "Score campaign content for cultural fit and bias",
                "parameters": [
                    {
                        "description": "Campaign content and target countries",
                        "name": "request",
                        "in": "body",
                        "required": true,
                        "schema": {"$ref": "#/definitions/types.AnalyzeRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/types.AnalysisResult"}},
                    "400": {"description": "Validation error, including unsupported country codes"},
                    "415": {"description": "Body is not JSON"},
                    "429": {"description": "Rate limit exceeded"},
                    "504": {"description": "Request deadline exceeded"}
                }
            }
        },
        "/api/countries": {
            "get": {
                "produces": ["application/json"],
                "tags": ["reference"],
                "summary": "List supported countries",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/cultural-dimensions/{code}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["reference"],
                "summary": "Cultural dimension profile for one country",
                "parameters": [
                    {"type": "string", "description": "ISO country code", "name": "code", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Unknown country code"}
                }
            }
        },
        "/api/bias-patterns": {
            "get": {
                "produces": ["application/json"],
                "tags": ["reference"],
                "summary": "List the bias pattern catalogue",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/api/rate-limit/status": {
            "get": {
                "produces": ["application/json"],
                "tags": ["operations"],
                "summary": "Analysis budget for the calling IP",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["operations"],
                "summary": "Service and oracle health",
                "responses": {
                    "200": {"description": "OK"},
                    "503": {"description": "Reference data or pattern library unavailable"}
                }
            }
        }
    },
    "definitions": {
        "types.AnalyzeRequest": {
            "type": "object",
            "required": ["campaign_content", "target_countries"],
            "properties": {
                "campaign_content": {"type": "string"},
                "target_countries": {"type": "array", "items": {"type": "string"}},
                "campaign_type": {"type": "string"},
                "industry": {"type": "string"}
            }
        },
        "types.BiasFlag": {
            "type": "object",
            "properties": {
                "type": {"type": "string", "enum": ["cultural_assumption", "stereotype", "linguistic", "representation"]},
                "pattern_id": {"type": "string"},
                "severity": {"type": "integer"},
                "description": {"type": "string"},
                "matches": {"type": "array", "items": {"type": "string"}},
                "cultural_context": {"type": "string"}
            }
        },
        "types.ConfidenceInterval": {
            "type": "object",
            "properties": {
                "lower_bound": {"type": "number"},
                "upper_bound": {"type": "number"},
                "confidence_level": {"type": "number"},
                "margin_of_error": {"type": "number"},
                "data_quality": {"type": "number"}
            }
        },
        "types.CountryAssessment": {
            "type": "object",
            "properties": {
                "country_code": {"type": "string"},
                "cultural_fit": {"type": "number"},
                "bias_penalty": {"type": "number"},
                "confidence_bonus": {"type": "number"},
                "data_quality": {"type": "number"},
                "score": {"type": "number"},
                "confidence_interval": {"$ref": "#/definitions/types.ConfidenceInterval"}
            }
        },
        "types.Recommendation": {
            "type": "object",
            "properties": {
                "country": {"type": "string"},
                "priority": {"type": "string", "enum": ["high", "medium", "low"]},
                "type": {"type": "string"},
                "message": {"type": "string"},
                "specific_suggestions": {"type": "array", "items": {"type": "string"}}
            }
        },
        "types.AnalysisResult": {
            "type": "object",
            "properties": {
                "analysis_id": {"type": "string"},
                "overall_score": {"type": "number"},
                "country_scores": {"type": "object", "additionalProperties": {"type": "number"}},
                "score_breakdown": {"type": "object", "additionalProperties": {"$ref": "#/definitions/types.CountryAssessment"}},
                "bias_flags": {"type": "array", "items": {"$ref": "#/definitions/types.BiasFlag"}},
                "cultural_insights": {"type": "object", "additionalProperties": {"type": "string"}},
                "recommendations": {"type": "array", "items": {"$ref": "#/definitions/types.Recommendation"}},
                "risk_level": {"type": "string", "enum": ["low", "medium", "high"]},
                "confidence_intervals": {"type": "object", "additionalProperties": {"$ref": "#/definitions/types.ConfidenceInterval"}},
                "timestamp": {"type": "string", "format": "date-time"},
                "processing_time_ms": {"type": "integer"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Cultural Bias Shield API",
	Description:      "Scores marketing copy for cultural alignment and bias across target countries.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
